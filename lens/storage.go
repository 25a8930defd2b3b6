package lens

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Storage persists rewrite outputs between runs.
type Storage interface {
	Save(key string, blob []byte) error
	// Load returns the blob for key, the bool is false if nothing is stored.
	Load(key string) ([]byte, bool, error)
	Delete(key string) error
	// Keys returns all keys that begin with the given prefix in sorted order.
	Keys(prefix string) ([]string, error)
	Clear() error
	Close() error
}

// NamespacedStorage wraps another Storage, prepending a fixed namespace to all keys. Keys returned
// from the wrapper have the namespace removed.
func NamespacedStorage(s Storage, namespace string) Storage {
	if namespace == "" {
		return s
	}
	return &namespacedStorage{
		store:  s,
		prefix: namespace + ";",
	}
}

type namespacedStorage struct {
	store  Storage
	prefix string
}

func (n *namespacedStorage) Save(key string, blob []byte) error {
	return n.store.Save(n.prefix+key, blob)
}

func (n *namespacedStorage) Load(key string) ([]byte, bool, error) {
	return n.store.Load(n.prefix + key)
}

func (n *namespacedStorage) Delete(key string) error {
	return n.store.Delete(n.prefix + key)
}

func (n *namespacedStorage) Keys(prefix string) ([]string, error) {
	underlying, err := n.store.Keys(n.prefix + prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range underlying {
		underlying[i] = strings.TrimPrefix(k, n.prefix)
	}
	return underlying, nil
}

func (n *namespacedStorage) Clear() error {
	keys, err := n.Keys("")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := n.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (n *namespacedStorage) Close() error {
	return n.store.Close()
}

type memStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemStorage returns an in-memory Storage, used for dry runs and when no cache dir is configured.
func NewMemStorage() Storage {
	return &memStorage{data: make(map[string][]byte)}
}

func (m *memStorage) Save(key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), blob...) // copy the blob to avoid external mutation
	return nil
}

func (m *memStorage) Load(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), blob...), true, nil
}

func (m *memStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *memStorage) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.data)
	return nil
}

func (m *memStorage) Close() error {
	return nil // no resources to free
}

type badgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage opens (or creates) a Badger backed Storage at path. Values are expected to be
// compressed by the caller, so database compression is disabled.
func NewBadgerStorage(path string, maxMemMB int) (Storage, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir failed: %w", err)
	}

	clamp := func(val, lo, high int64) int64 {
		return min(max(val, lo), high)
	}
	memTableSize := clamp(int64(maxMemMB/4), 8, 64) << 20
	// TotalRAM ≃ (NumMemtables × MemTableSize) + IndexCacheSize
	opts := badger.DefaultOptions(path).
		WithInMemory(false).
		WithCompression(options.None).
		WithBlockCacheSize(0). // only useful with db compression
		WithNumMemtables(2).
		WithMemTableSize(memTableSize).
		WithBaseTableSize(memTableSize).
		WithIndexCacheSize(clamp(int64(maxMemMB/4), 8, 64) << 20).
		WithValueLogFileSize(64 << 20).
		WithLoggingLevel(badger.ERROR).
		WithMetricsEnabled(false)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache db failed: %w", err)
	}
	return &badgerStorage{db: db}, nil
}

func (b *badgerStorage) Save(key string, blob []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), blob)
	})
}

func (b *badgerStorage) Load(key string) ([]byte, bool, error) {
	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

func (b *badgerStorage) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *badgerStorage) Keys(prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		it := txn.NewIterator(itOpts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	return keys, err
}

func (b *badgerStorage) Clear() error {
	return b.db.DropAll()
}

func (b *badgerStorage) Close() error {
	return b.db.Close()
}
