package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes of the on-disk layout.
const (
	prefixMeta      byte = 0x01 // dim, seed, frozen
	prefixSlot      byte = 0x02 // slot(uint32 big-endian) -> term
	prefixEmbedding byte = 0x03 // term -> little-endian float64s
)

// ErrNoTable is returned by Load when the database holds no table.
var ErrNoTable = errors.New("embedding: no table stored")

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data in RAM (tests).
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// BadgerStore persists embedding tables in a badger database so that
// vectors stay comparable across process restarts.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database described by opts.
func OpenBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Dir).
		WithLogger(nil).
		WithSyncWrites(opts.SyncWrites).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(32 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4)
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Save replaces the stored table with t.
func (s *BadgerStore) Save(ctx context.Context, t *Table) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("failed to clear embedding store: %w", err)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	meta := make([]byte, 17)
	binary.LittleEndian.PutUint64(meta[0:], uint64(t.dim))
	binary.LittleEndian.PutUint64(meta[8:], uint64(t.seed))
	if t.frozen {
		meta[16] = 1
	}
	if err := wb.Set([]byte{prefixMeta}, meta); err != nil {
		return err
	}

	for slot, term := range t.vocabulary {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wb.Set(slotKey(slot), []byte(term)); err != nil {
			return err
		}
	}

	for term, vec := range t.embeddings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wb.Set(embeddingKey(term), encodeFloats(vec)); err != nil {
			return err
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to write embedding table: %w", err)
	}
	return nil
}

// Load restores the stored table.
func (s *BadgerStore) Load(ctx context.Context) (*Table, error) {
	var t *Table

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte{prefixMeta})
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoTable
		}
		if err != nil {
			return err
		}

		var frozen bool
		if err := item.Value(func(val []byte) error {
			if len(val) != 17 {
				return fmt.Errorf("embedding: corrupt table header (%d bytes)", len(val))
			}
			t = NewTable(int(binary.LittleEndian.Uint64(val[0:])), int64(binary.LittleEndian.Uint64(val[8:])))
			frozen = val[16] == 1
			return nil
		}); err != nil {
			return err
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		// Slot keys are big-endian, so iteration order is slot order.
		slotPrefix := []byte{prefixSlot}
		for it.Seek(slotPrefix); it.ValidForPrefix(slotPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			term, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			t.slots[string(term)] = len(t.vocabulary)
			t.vocabulary = append(t.vocabulary, string(term))
		}

		embPrefix := []byte{prefixEmbedding}
		for it.Seek(embPrefix); it.ValidForPrefix(embPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			term := string(item.Key()[1:])
			if err := item.Value(func(val []byte) error {
				vec, err := decodeFloats(val, t.dim)
				if err != nil {
					return fmt.Errorf("embedding for %q: %w", term, err)
				}
				t.embeddings[term] = vec
				return nil
			}); err != nil {
				return err
			}
		}

		t.frozen = frozen
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func slotKey(slot int) []byte {
	k := make([]byte, 5)
	k[0] = prefixSlot
	binary.BigEndian.PutUint32(k[1:], uint32(slot))
	return k
}

func embeddingKey(term string) []byte {
	return append([]byte{prefixEmbedding}, term...)
}

func encodeFloats(v []float64) []byte {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
	}
	return b
}

func decodeFloats(b []byte, dim int) ([]float64, error) {
	if len(b) != 8*dim {
		return nil, fmt.Errorf("embedding: expected %d bytes, got %d", 8*dim, len(b))
	}
	v := make([]float64, dim)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}
