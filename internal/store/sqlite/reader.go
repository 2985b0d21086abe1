package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cryptosignal/internal/indicator"
	"cryptosignal/internal/model"
)

// Reader provides read-only access to archived bars.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	return &Reader{db: db}, nil
}

// ReadBars returns the bars of an instrument at or after from, oldest first.
// The table must expose exactly the bar columns in order; anything else is
// an *indicator.SchemaError.
func (r *Reader) ReadBars(ctx context.Context, market string, granularity int, from time.Time) ([]model.PriceBar, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT * FROM bars
		WHERE market = ? AND granularity = ? AND date >= ?
		ORDER BY date ASC
	`, market, granularity, from.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if err := indicator.ValidateColumns(cols); err != nil {
		return nil, err
	}

	var bars []model.PriceBar
	for rows.Next() {
		var b model.PriceBar
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &b.Market, &b.Granularity, &b.Low, &b.High, &b.Open, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.Date = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
