package badger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: slog.Default(),
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// batchedTx is a write transaction that commits itself and reopens
// when it grows too large, so snapshot-sized writes are not capped by
// badger's single-transaction ceiling. The caller must hold the
// collection's write lock for the whole write: the intermediate
// commits are visible to transactions started after them, and only
// writes since the last commit are rolled back by Discard.
type batchedTx struct {
	db         *badger.DB
	tx         *badger.Txn
	ops        int
	flushEvery int // commit after this many writes; 0 commits only on ErrTxnTooBig
}

func (b *Backend) newBatchedTx(flushEvery int) *batchedTx {
	return &batchedTx{
		db:         b.db,
		tx:         b.db.NewTransaction(true),
		flushEvery: flushEvery,
	}
}

func (t *batchedTx) write(op func(tx *badger.Txn) error) error {
	if t.flushEvery > 0 && t.ops >= t.flushEvery {
		if err := t.flush(); err != nil {
			return err
		}
	}
	err := op(t.tx)
	if err == badger.ErrTxnTooBig {
		if err := t.flush(); err != nil {
			return err
		}
		err = op(t.tx)
	}
	if err == nil {
		t.ops++
	}
	return err
}

func (t *batchedTx) flush() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}
	t.tx = t.db.NewTransaction(true)
	t.ops = 0
	return nil
}

// Set writes a key, splitting the transaction when needed.
func (t *batchedTx) Set(key, val []byte) error {
	return t.write(func(tx *badger.Txn) error { return tx.Set(key, val) })
}

// Delete removes a key, splitting the transaction when needed.
func (t *batchedTx) Delete(key []byte) error {
	return t.write(func(tx *badger.Txn) error { return tx.Delete(key) })
}

// Commit commits the open tail of the batch.
func (t *batchedTx) Commit() error {
	return t.tx.Commit()
}

// Discard drops the uncommitted tail of the batch.
func (t *batchedTx) Discard() {
	t.tx.Discard()
}
