package sqlite

import (
	"database/sql"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Archive is a Writer and a Reader over one database file; it satisfies
// model.BarStore.
type Archive struct {
	*Writer
	*Reader
}

// Open opens (or creates) the archive at dbPath.
func Open(dbPath string, log *zap.Logger) (*Archive, error) {
	w, err := New(dbPath, log)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(dbPath)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Archive{Writer: w, Reader: r}, nil
}

// DB returns the writer's handle for health checks.
func (a *Archive) DB() *sql.DB { return a.Writer.DB() }

// Close closes both connections.
func (a *Archive) Close() error {
	return multierr.Combine(a.Reader.Close(), a.Writer.Close())
}
