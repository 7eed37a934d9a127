package storage

import (
	"errors"
	"fmt"
)

// Store backends accepted by NewStore and the storage.kind setting.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

var ErrUnsupportedStore = errors.New("unsupported store backend")

// NewStore builds the backend named by kind. An empty kind selects memory.
// The sqlite store is opened lazily by Init.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		if sqlitePath == "" {
			return nil, fmt.Errorf("%s store requires a database path", KindSQLite)
		}
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
