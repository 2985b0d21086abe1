// Package sqlite archives price bars in SQLite for backtests and restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
)

// Writer inserts bars in batched transactions.
type Writer struct {
	db  *sql.DB
	log *zap.Logger
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(dbPath string, log *zap.Logger) (*Writer, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log = log.Named("sqlite")
	log.Info("opened database", zap.String("path", dbPath))
	return &Writer{db: db, log: log}, nil
}

// The column order of bars matches model.BarColumns; readers check it.
func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			date        INTEGER NOT NULL,
			market      TEXT    NOT NULL,
			granularity INTEGER NOT NULL,
			low         REAL    NOT NULL,
			high        REAL    NOT NULL,
			open        REAL    NOT NULL,
			close       REAL    NOT NULL,
			volume      REAL    NOT NULL,
			PRIMARY KEY (market, granularity, date)
		);
	`)
	return err
}

// WriteBars upserts bars in a single transaction.
func (w *Writer) WriteBars(ctx context.Context, bars []model.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (date, market, granularity, low, high, open, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, b.Date.Unix(), b.Market, b.Granularity, b.Low, b.High, b.Open, b.Close, b.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	w.log.Debug("committed bars", zap.Int("count", len(bars)), zap.String("market", bars[0].Market))
	return nil
}

// GetLastTimestamp returns the last stored bar time (unix seconds) of an
// instrument. Returns 0 if no bars exist.
func (w *Writer) GetLastTimestamp(ctx context.Context, market string, granularity int) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM bars WHERE market = ? AND granularity = ?`,
		market, granularity,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
