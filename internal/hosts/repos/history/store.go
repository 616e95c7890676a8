// Package history keeps a bounded log of cycle reports in a bbolt database so the
// status command can show what the background process did.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/auto-hosts/internal/hosts/domain"
)

var (
	bucketReports = []byte("reports")
	bucketMeta    = []byte("meta")

	keyTotal = []byte("total")
)

const openTimeout = 1 * time.Second

// Store appends cycle reports to a bbolt file.
//
// The database is opened per operation rather than for the process lifetime so that
// the status command can read it while the background loop is running.
type Store struct {
	path  string
	limit int
}

// Stats summarizes the history file.
type Stats struct {
	Kept  int    // reports currently stored
	Total uint64 // reports ever appended
}

// New ensures the database at path exists with its buckets and returns a Store that keeps
// at most limit reports.
func New(path string, limit int) (*Store, error) {
	if limit < 1 {
		return nil, fmt.Errorf("history limit must be at least 1, got %d", limit)
	}
	s := &Store{path: path, limit: limit}
	err := s.update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketReports); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Append stores r and drops the oldest reports beyond the limit.
func (s *Store) Append(r domain.Report) error {
	val, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketReports)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(itob(seq), val); err != nil {
			return err
		}
		if err := s.bumpTotal(tx); err != nil {
			return err
		}
		return prune(b, s.limit)
	})
}

// Recent returns up to n reports, newest first.
func (s *Store) Recent(n int) ([]domain.Report, error) {
	var out []domain.Report
	err := s.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var r domain.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode report %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Last returns the newest report and whether one exists.
func (s *Store) Last() (domain.Report, bool, error) {
	recent, err := s.Recent(1)
	if err != nil || len(recent) == 0 {
		return domain.Report{}, false, err
	}
	return recent[0], true, nil
}

// Stats reports how many entries are kept and how many were ever written.
func (s *Store) Stats() (Stats, error) {
	st := Stats{}
	err := s.view(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketReports); b != nil {
			st.Kept = countKeys(b)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyTotal); len(v) == 8 {
				st.Total = binary.BigEndian.Uint64(v)
			}
		}
		return nil
	})
	return st, err
}

func (s *Store) bumpTotal(tx *bbolt.Tx) error {
	b := tx.Bucket(bucketMeta)
	var total uint64
	if v := b.Get(keyTotal); len(v) == 8 {
		total = binary.BigEndian.Uint64(v)
	}
	return b.Put(keyTotal, itob(total+1))
}

// prune deletes the oldest keys until at most limit remain.
func prune(b *bbolt.Bucket, limit int) error {
	excess := countKeys(b) - limit
	if excess <= 0 {
		return nil
	}
	c := b.Cursor()
	for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
		if err := b.Delete(k); err != nil {
			return err
		}
		excess--
	}
	return nil
}

// countKeys walks the bucket; Bucket.Stats only sees committed pages.
func countKeys(b *bbolt.Bucket) int {
	n := 0
	_ = b.ForEach(func(_, _ []byte) error {
		n++
		return nil
	})
	return n
}

func (s *Store) update(fn func(tx *bbolt.Tx) error) error {
	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func (s *Store) view(fn func(tx *bbolt.Tx) error) error {
	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: openTimeout, ReadOnly: true})
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
