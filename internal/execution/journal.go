package execution

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"cryptosignal/internal/model"
)

// SQLiteJournal persists trade fills to SQLite for analysis and audit.
type SQLiteJournal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) a SQLite journal database.
func NewSQLiteJournal(dbPath string, log *zap.Logger) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		date        TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		type        TEXT NOT NULL,
		coin_amount REAL NOT NULL,
		price       REAL NOT NULL,
		amount      REAL NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_type ON trades(symbol, type);
	CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(date);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Named("journal").Info("opened trade journal", zap.String("path", dbPath))
	return &SQLiteJournal{db: db}, nil
}

// DB exposes the handle for liveness probes.
func (j *SQLiteJournal) DB() *sql.DB { return j.db }

// Record persists a trade to the journal.
func (j *SQLiteJournal) Record(ctx context.Context, t model.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trades (date, symbol, type, coin_amount, price, amount)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Date.UTC().Format(time.RFC3339Nano),
		t.Symbol,
		string(t.Type),
		t.CoinAmount,
		t.Price,
		t.Amount,
	)
	return err
}

// Last returns the most recent trade of side for symbol.
func (j *SQLiteJournal) Last(ctx context.Context, symbol string, side model.Side) (model.Trade, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var (
		t    model.Trade
		date string
		typ  string
	)
	err := j.db.QueryRowContext(ctx,
		`SELECT date, symbol, type, coin_amount, price, amount
		 FROM trades WHERE symbol = ? AND type = ? ORDER BY id DESC LIMIT 1`,
		symbol, string(side),
	).Scan(&date, &t.Symbol, &typ, &t.CoinAmount, &t.Price, &t.Amount)
	if err == sql.ErrNoRows {
		return model.Trade{}, false, nil
	}
	if err != nil {
		return model.Trade{}, false, err
	}
	t.Type = model.Side(typ)
	if t.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
		return model.Trade{}, false, err
	}
	return t, true, nil
}

// GetTrades returns the last N trades, newest first.
func (j *SQLiteJournal) GetTrades(ctx context.Context, limit int) ([]model.Trade, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT date, symbol, type, coin_amount, price, amount
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var (
			t         model.Trade
			date, typ string
		)
		if err := rows.Scan(&date, &t.Symbol, &typ, &t.CoinAmount, &t.Price, &t.Amount); err != nil {
			continue
		}
		t.Type = model.Side(typ)
		t.Date, _ = time.Parse(time.RFC3339Nano, date)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
