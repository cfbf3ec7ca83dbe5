package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/davidahmann/cardkit/internal/logger"
)

const badgerKeyPrefix = "tracking/"

type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *logger.Logger
}

// BadgerStore keeps records in an embedded BadgerDB. Set runs inside a
// read-write transaction, so a concurrent writer also surfaces as a conflict
// when badger rejects the commit.
type BadgerStore struct {
	db *badger.DB
}

type badgerLogger struct {
	log *logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("tracking: badger path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Get(_ context.Context, key string) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readBadger(txn, key)
		return err
	})
	return rec, err
}

func (s *BadgerStore) Set(ctx context.Context, key string, rec Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var next int64
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readBadger(txn, key)
		if err != nil {
			return err
		}
		if current.Revision != rec.Revision {
			return &ConflictError{Key: key, ExpectedRevision: rec.Revision, CurrentRevision: current.Revision}
		}
		stored := rec
		stored.Revision = current.Revision + 1
		data, err := encodeRecord(stored)
		if err != nil {
			return err
		}
		next = stored.Revision
		return txn.Set([]byte(badgerKeyPrefix+key), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return 0, &ConflictError{Key: key, ExpectedRevision: rec.Revision, CurrentRevision: -1}
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

func readBadger(txn *badger.Txn, key string) (Record, error) {
	item, err := txn.Get([]byte(badgerKeyPrefix + key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	err = item.Value(func(val []byte) error {
		rec, err = decodeRecord(val)
		return err
	})
	return rec, err
}
