package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

var (
	ErrNotFound = errors.New("no snapshot stored")

	snapshotBucket = []byte("snapshots")
	latestKey      = []byte("latest")
	historyBucket  = []byte("history")
)

const defaultHistory = 16

type (
	EncodeFn func(v any) ([]byte, error)
	DecodeFn func(data []byte, v any) error

	// SnapshotStore keeps the latest ledger snapshot in a bolt database file,
	// plus a bounded history keyed by notification sequence number.
	SnapshotStore struct {
		db      *bolt.DB
		encoder EncodeFn
		decoder DecodeFn
		history int
	}

	Option func(*SnapshotStore)
)

// WithHistory sets how many past snapshots are retained next to the latest.
// Zero disables the history.
func WithHistory(n int) Option {
	return func(s *SnapshotStore) {
		if n >= 0 {
			s.history = n
		}
	}
}

// Open opens (creating if needed) the snapshot store at path.
func Open(path string, opts ...Option) (*SnapshotStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store %s: %w", path, err)
	}
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cbor encoder: %w", err)
	}
	s := &SnapshotStore{
		db:      db,
		encoder: encMode.Marshal,
		decoder: cbor.Unmarshal,
		history: defaultHistory,
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.createBuckets(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SnapshotStore) Path() string {
	return s.db.Path()
}

func (s *SnapshotStore) createBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{snapshotBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
}

// Save stores st as the latest snapshot and appends it to the history.
func (s *SnapshotStore) Save(st *ledger.State) error {
	b, err := s.encoder(st)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(snapshotBucket).Put(latestKey, b); err != nil {
			return err
		}
		if s.history == 0 {
			return nil
		}
		hist := tx.Bucket(historyBucket)
		if err := hist.Put(seqKey(st.Seq), b); err != nil {
			return err
		}
		return trim(hist, s.history)
	}); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load returns the latest snapshot, or ErrNotFound when none was saved.
func (s *SnapshotStore) Load() (*ledger.State, error) {
	st := &ledger.State{}
	if err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(snapshotBucket).Get(latestKey)
		if data == nil {
			return ErrNotFound
		}
		return s.decoder(data, st)
	}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return st, nil
}

// History returns the sequence numbers of retained past snapshots, oldest first.
func (s *SnapshotStore) History() ([]uint64, error) {
	var out []uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).ForEach(func(k, _ []byte) error {
			out = append(out, seqFromKey(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot history: %w", err)
	}
	return out, nil
}

// LoadAt returns the retained snapshot taken at notification sequence seq.
func (s *SnapshotStore) LoadAt(seq uint64) (*ledger.State, error) {
	st := &ledger.State{}
	if err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(historyBucket).Get(seqKey(seq))
		if data == nil {
			return ErrNotFound
		}
		return s.decoder(data, st)
	}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read snapshot %d: %w", seq, err)
	}
	return st, nil
}

func (s *SnapshotStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// trim deletes the oldest entries of b until at most keep remain.
func trim(b *bolt.Bucket, keep int) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	if len(keys) <= keep {
		return nil
	}
	for _, k := range keys[:len(keys)-keep] {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
