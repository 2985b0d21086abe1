package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"cryptosignal/internal/model"
)

// csvTrade is one row of transaction_<symbol>.csv.
type csvTrade struct {
	Date       string  `csv:"date"`
	Symbol     string  `csv:"instrument_symbol"`
	Type       string  `csv:"type"`
	CoinAmount float64 `csv:"coin_amount"`
	Price      float64 `csv:"price"`
	Amount     float64 `csv:"amount"`
}

// CSVJournal keeps one transaction CSV file per symbol in a directory.
type CSVJournal struct {
	mu  sync.Mutex
	dir string
}

// NewCSVJournal creates the directory if needed.
func NewCSVJournal(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv journal: %w", err)
	}
	return &CSVJournal{dir: dir}, nil
}

// Path returns the transaction file of symbol, e.g. transaction_btc_usdt.csv.
func (j *CSVJournal) Path(symbol string) string {
	name := strings.NewReplacer("/", "_", "-", "_").Replace(strings.ToLower(symbol))
	return filepath.Join(j.dir, "transaction_"+name+".csv")
}

// Record appends t to the symbol's file, writing the header on first use.
func (j *CSVJournal) Record(_ context.Context, t model.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.read(t.Symbol)
	if err != nil {
		return err
	}
	rows = append(rows, &csvTrade{
		Date:       t.Date.UTC().Format(time.RFC3339),
		Symbol:     t.Symbol,
		Type:       string(t.Type),
		CoinAmount: t.CoinAmount,
		Price:      t.Price,
		Amount:     t.Amount,
	})

	path := j.Path(t.Symbol)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("csv journal: %w", err)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return fmt.Errorf("csv journal: write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csv journal: %w", err)
	}
	return os.Rename(tmp, path)
}

// Last returns the most recent row of side for symbol.
func (j *CSVJournal) Last(_ context.Context, symbol string, side model.Side) (model.Trade, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.read(symbol)
	if err != nil {
		return model.Trade{}, false, err
	}
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if model.Side(r.Type) != side {
			continue
		}
		date, err := time.Parse(time.RFC3339, r.Date)
		if err != nil {
			return model.Trade{}, false, fmt.Errorf("csv journal: row %d date %q: %w", i+1, r.Date, err)
		}
		return model.Trade{
			Date:       date,
			Symbol:     r.Symbol,
			Type:       side,
			CoinAmount: r.CoinAmount,
			Price:      r.Price,
			Amount:     r.Amount,
		}, true, nil
	}
	return model.Trade{}, false, nil
}

// Count returns the number of rows recorded for symbol.
func (j *CSVJournal) Count(symbol string) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.read(symbol)
	return len(rows), err
}

func (j *CSVJournal) read(symbol string) ([]*csvTrade, error) {
	f, err := os.Open(j.Path(symbol))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv journal: %w", err)
	}
	defer f.Close()

	var rows []*csvTrade
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("csv journal: read %s: %w", f.Name(), err)
	}
	return rows, nil
}

// Close is a no-op; files are closed after every operation.
func (j *CSVJournal) Close() error { return nil }
