package cachestore

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/wirecache/wirecache/internal/bytesize"
	"github.com/wirecache/wirecache/internal/logger"
)

// Metrics receives cache store observations. A nil Metrics is valid and
// results in zero overhead.
type Metrics interface {
	ObservePut(namespace string, bytes int)
	ObserveMatch(namespace string, hit bool)
	ObserveEviction(namespace string, evicted int)
	ObserveNamespaceDeleted(namespace string)
}

// Options configures a Store.
type Options struct {
	// MaxBodySize caps the stored body size per entry. Writes over the cap
	// fail with ErrQuotaExceeded. Zero means unlimited.
	MaxBodySize bytesize.ByteSize

	// Metrics receives store observations. May be nil.
	Metrics Metrics
}

// Store is a durable cache store backed by BadgerDB.
//
// All operations are atomic per key: each Put/Match/Trim call runs in a
// single badger transaction. No cross-key snapshot is guaranteed, and none
// is needed - every caller touches one key per logical request.
type Store struct {
	db      *badgerdb.DB
	opts    Options
	metrics Metrics
}

// Open opens (or creates) the durable cache store at the given directory.
func Open(path string, opts Options) (*Store, error) {
	badgerOpts := badgerdb.DefaultOptions(path).
		WithLogger(nil) // badger's own logging is too chatty; we log at the store level

	db, err := badgerdb.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store at %q: %w", path, err)
	}

	return &Store{
		db:      db,
		opts:    opts,
		metrics: opts.Metrics,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return ErrStoreClosed
	}
	return s.db.Close()
}

// Put stores an entry under its canonical URL in the given namespace.
//
// Replaces any existing entry for the same URL; the insertion-order index is
// updated so a replaced entry counts as newly inserted. Returns
// ErrQuotaExceeded when the body is over the configured cap - callers are
// expected to log and serve the uncached response.
func (s *Store) Put(ctx context.Context, ns Namespace, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.opts.MaxBodySize > 0 && bytesize.ByteSize(len(entry.Body)) > s.opts.MaxBodySize {
		return fmt.Errorf("%w: body %d bytes, limit %s", ErrQuotaExceeded, len(entry.Body), s.opts.MaxBodySize)
	}

	key, err := CanonicalKey(entry.URL)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		// Drop the previous insertion-index row when replacing.
		if item, err := txn.Get(keyEntry(ns, key)); err == nil {
			old, decErr := item.ValueCopy(nil)
			if decErr != nil {
				return decErr
			}
			prev, decErr := decodeEntry(old)
			if decErr != nil {
				return decErr
			}
			if err := txn.Delete(keyIndex(ns, prev.Seq)); err != nil {
				return err
			}
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}

		seq, err := nextSequence(txn, ns)
		if err != nil {
			return err
		}

		stored := *entry
		stored.URL = key
		stored.Seq = seq
		if stored.InsertedAt.IsZero() {
			stored.InsertedAt = time.Now().UTC()
		}

		data, err := encodeEntry(&stored)
		if err != nil {
			return err
		}

		if err := txn.Set(keyEntry(ns, key), data); err != nil {
			return err
		}
		if err := txn.Set(keyIndex(ns, seq), []byte(key)); err != nil {
			return err
		}

		return ensureNamespace(txn, ns)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObservePut(ns.StorageName(), len(entry.Body))
	}
	return nil
}

// Match looks up the entry for a URL. Returns (nil, false, nil) on a miss.
// An entry past its own expiry is treated as absent but left in place for
// EvictExpired to collect.
func (s *Store) Match(ctx context.Context, ns Namespace, rawURL string) (*Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	key, err := CanonicalKey(rawURL)
	if err != nil {
		return nil, false, err
	}

	var entry *Entry
	err = s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyEntry(ns, key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			e, decErr := decodeEntry(val)
			if decErr != nil {
				return decErr
			}
			entry = e
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to match cache entry: %w", err)
	}

	if entry != nil && entry.Expired(time.Now().UTC()) {
		entry = nil
	}

	hit := entry != nil
	if s.metrics != nil {
		s.metrics.ObserveMatch(ns.StorageName(), hit)
	}
	return entry, hit, nil
}

// DeleteNamespace removes a namespace and every entry in it.
// Deleting a namespace that does not exist is a no-op.
func (s *Store) DeleteNamespace(ctx context.Context, ns Namespace) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for _, prefix := range [][]byte{keyEntryPrefix(ns), keyIndexPrefix(ns)} {
			if err := deletePrefix(txn, prefix); err != nil {
				return err
			}
		}
		if err := txn.Delete(keyNamespace(ns)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		if err := txn.Delete(keySequence(ns)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", ns.StorageName(), err)
	}

	logger.Debug("Deleted cache namespace", "namespace", ns.StorageName())
	if s.metrics != nil {
		s.metrics.ObserveNamespaceDeleted(ns.StorageName())
	}
	return nil
}

// Trim removes oldest-inserted entries until the namespace holds at most
// maxEntries. Strict LRU-by-insertion: access order is irrelevant.
// Returns the number of evicted entries.
func (s *Store) Trim(ctx context.Context, ns Namespace, maxEntries int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	evicted := 0
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		urls, indexKeys, err := entriesInInsertionOrder(txn, ns)
		if err != nil {
			return err
		}

		excess := len(urls) - maxEntries
		for i := 0; i < excess; i++ {
			if err := txn.Delete(keyEntry(ns, urls[i])); err != nil {
				return err
			}
			if err := txn.Delete(indexKeys[i]); err != nil {
				return err
			}
			evicted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to trim namespace %s: %w", ns.StorageName(), err)
	}

	if evicted > 0 {
		logger.Debug("Trimmed cache namespace", "namespace", ns.StorageName(), "evicted", evicted)
		if s.metrics != nil {
			s.metrics.ObserveEviction(ns.StorageName(), evicted)
		}
	}
	return evicted, nil
}

// EvictExpired removes entries older than maxAge, plus any entry past its
// own expiry. Returns the number of evicted entries.
func (s *Store) EvictExpired(ctx context.Context, ns Namespace, maxAge time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	cutoff := now.Add(-maxAge)

	evicted := 0
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = keyEntryPrefix(ns)
		it := txn.NewIterator(opts)
		defer it.Close()

		type victim struct {
			url string
			seq uint64
		}
		var victims []victim

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				e, decErr := decodeEntry(val)
				if decErr != nil {
					return decErr
				}
				if (maxAge > 0 && e.InsertedAt.Before(cutoff)) || e.Expired(now) {
					victims = append(victims, victim{url: e.URL, seq: e.Seq})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		for _, v := range victims {
			if err := txn.Delete(keyEntry(ns, v.url)); err != nil {
				return err
			}
			if err := txn.Delete(keyIndex(ns, v.seq)); err != nil {
				return err
			}
			evicted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to evict expired entries from %s: %w", ns.StorageName(), err)
	}

	if evicted > 0 && s.metrics != nil {
		s.metrics.ObserveEviction(ns.StorageName(), evicted)
	}
	return evicted, nil
}

// Namespaces returns every namespace that currently holds entries.
func (s *Store) Namespaces(ctx context.Context) ([]Namespace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var namespaces []Namespace
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixNamespace)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ns, decErr := decodeNamespace(val)
				if decErr != nil {
					return decErr
				}
				namespaces = append(namespaces, ns)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	return namespaces, nil
}

// Size returns the entry count and total stored body bytes of a namespace.
func (s *Store) Size(ctx context.Context, ns Namespace) (entries int, bytes int64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	err = s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = keyEntryPrefix(ns)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				e, decErr := decodeEntry(val)
				if decErr != nil {
					return decErr
				}
				entries++
				bytes += int64(len(e.Body))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to size namespace %s: %w", ns.StorageName(), err)
	}

	return entries, bytes, nil
}

// ============================================================================
// Transaction helpers
// ============================================================================

// nextSequence increments and returns the per-namespace insertion sequence.
func nextSequence(txn *badgerdb.Txn, ns Namespace) (uint64, error) {
	var seq uint64

	item, err := txn.Get(keySequence(ns))
	if err == nil {
		err = item.Value(func(val []byte) error {
			v, decErr := decodeUint64(val)
			if decErr != nil {
				return decErr
			}
			seq = v
			return nil
		})
		if err != nil {
			return 0, err
		}
	} else if err != badgerdb.ErrKeyNotFound {
		return 0, err
	}

	seq++
	if err := txn.Set(keySequence(ns), encodeUint64(seq)); err != nil {
		return 0, err
	}
	return seq, nil
}

// ensureNamespace writes the namespace registry record if missing.
func ensureNamespace(txn *badgerdb.Txn, ns Namespace) error {
	_, err := txn.Get(keyNamespace(ns))
	if err == nil {
		return nil
	}
	if err != badgerdb.ErrKeyNotFound {
		return err
	}

	data, err := encodeNamespace(ns)
	if err != nil {
		return err
	}
	return txn.Set(keyNamespace(ns), data)
}

// entriesInInsertionOrder scans the insertion index and returns entry URLs
// oldest first, alongside the index keys for deletion.
func entriesInInsertionOrder(txn *badgerdb.Txn, ns Namespace) ([]string, [][]byte, error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = keyIndexPrefix(ns)
	it := txn.NewIterator(opts)
	defer it.Close()

	var urls []string
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, nil, err
		}
		urls = append(urls, string(val))
		keys = append(keys, item.KeyCopy(nil))
	}
	return urls, keys, nil
}

// deletePrefix removes every key under the given prefix.
func deletePrefix(txn *badgerdb.Txn, prefix []byte) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
