// Package history maintains the per-BSSID baseline and observation
// history that scan cycles are diffed against.
package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/apwatch/apwatch/types"
)

// Bucket names in bbolt
var (
	bucketRecords      = []byte("records")
	bucketObservations = []byte("observations")
	bucketMeta         = []byte("meta")
)

var keyCurrentRevision = []byte("current_revision")

// Options bound the store's memory and control staleness transitions.
type Options struct {
	// HistoryWindow caps the recent observations kept per AP.
	HistoryWindow int
	// StaleAfter is the absence span after which a record turns stale.
	StaleAfter time.Duration
	// RetainFor is the absence span after which a stale record is evicted.
	RetainFor time.Duration
}

// DefaultOptions returns the standard store tuning.
func DefaultOptions() Options {
	return Options{
		HistoryWindow: 20,
		StaleAfter:    5 * time.Minute,
		RetainFor:     24 * time.Hour,
	}
}

// Store is the AP history table: an in-memory btree index over records,
// journaled to bbolt so baselines survive restarts. All mutation funnels
// through the single scan-cycle owner; the RWMutex only guards readers
// like the control endpoint.
type Store struct {
	mu sync.RWMutex

	index      *btree.BTreeG[*Record]
	db         *bbolt.DB
	currentRev int64
	opts       Options
}

// Open creates or reopens a store in the given directory.
func Open(dir string, opts Options) (*Store, error) {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultOptions().HistoryWindow
	}

	db, err := bbolt.Open(filepath.Join(dir, "apwatch.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecords, bucketObservations, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		index: btree.NewG[*Record](32, func(a, b *Record) bool {
			return a.BSSID < b.BSSID
		}),
		db:   db,
		opts: opts,
	}

	if err := s.loadRevision(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert records one observation. Unknown BSSIDs get a new record with
// the baseline taken from the observation (first seen is trusted).
// Known BSSIDs get the observation appended to their bounded history.
// Returns the post-update record and whether it was created.
func (s *Store) Upsert(obs types.Observation) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.lookup(obs.BSSID)
	created := !found
	if created {
		rec = &Record{
			BSSID:              obs.BSSID,
			FirstSeen:          obs.ObservedAt,
			BaselineSSID:       obs.SSID,
			BaselineEncryption: obs.Encryption,
		}
	}

	rec.LastSeen = obs.ObservedAt
	rec.Stale = false
	rec.StaleSince = time.Time{}
	rec.Recent = append(rec.Recent, obs)
	if excess := len(rec.Recent) - s.opts.HistoryWindow; excess > 0 {
		rec.Recent = rec.Recent[excess:]
	}

	s.currentRev++
	if err := s.persist(rec, &obs); err != nil {
		return nil, false, err
	}
	s.index.ReplaceOrInsert(rec)

	return rec.clone(), created, nil
}

// MarkAbsent notes that a known AP was missing from the current
// snapshot. When the absence exceeds the stale threshold the record
// transitions to stale; the return value is true only on that first
// transition.
func (s *Store) MarkAbsent(bssid string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.lookup(bssid)
	if !found {
		return false, fmt.Errorf("unknown BSSID %s", bssid)
	}
	if rec.Stale {
		return false, nil
	}
	if now.Sub(rec.LastSeen) < s.opts.StaleAfter {
		return false, nil
	}

	rec.Stale = true
	rec.StaleSince = now
	if err := s.persist(rec, nil); err != nil {
		return false, err
	}
	s.index.ReplaceOrInsert(rec)
	return true, nil
}

// EvictExpired removes records that have been stale past the retention
// window and returns them. Callers must emit a vanish event for any
// evicted record whose alert state is still unresolved.
func (s *Store) EvictExpired(now time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*Record
	s.index.Ascend(func(rec *Record) bool {
		if rec.Stale && now.Sub(rec.LastSeen) >= s.opts.RetainFor {
			expired = append(expired, rec)
		}
		return true
	})

	evicted := make([]Record, 0, len(expired))
	for _, rec := range expired {
		err := s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketRecords).Delete([]byte(rec.BSSID))
		})
		if err != nil {
			return evicted, fmt.Errorf("failed to evict %s: %w", rec.BSSID, err)
		}
		s.index.Delete(rec)
		evicted = append(evicted, *rec.clone())
	}

	return evicted, nil
}

// Get returns a copy of the record for bssid.
func (s *Store) Get(bssid string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, found := s.lookup(bssid)
	if !found {
		return nil, false
	}
	return rec.clone(), true
}

// All returns copies of every record, ordered by BSSID.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, s.index.Len())
	s.index.Ascend(func(rec *Record) bool {
		records = append(records, *rec.clone())
		return true
	})
	return records
}

// Count returns the number of tracked APs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Rebaseline accepts the AP's current identity as trusted: baseline SSID
// and encryption are set from the latest observation and the alert state
// is cleared.
func (s *Store) Rebaseline(bssid string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.lookup(bssid)
	if !found {
		return nil, fmt.Errorf("unknown BSSID %s", bssid)
	}
	latest := rec.Latest()
	if latest == nil {
		return nil, fmt.Errorf("no observations recorded for %s", bssid)
	}

	rec.BaselineSSID = latest.SSID
	rec.BaselineEncryption = latest.Encryption
	rec.AlertState = nil
	rec.AnomalyStreak = 0

	if err := s.persist(rec, nil); err != nil {
		return nil, err
	}
	s.index.ReplaceOrInsert(rec)
	return rec.clone(), nil
}

// SetAlertState records the last forwarded verdict for an AP.
func (s *Store) SetAlertState(bssid string, state types.AlertState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.lookup(bssid)
	if !found {
		return fmt.Errorf("unknown BSSID %s", bssid)
	}
	rec.AlertState = &state
	if err := s.persist(rec, nil); err != nil {
		return err
	}
	s.index.ReplaceOrInsert(rec)
	return nil
}

// NoteAnomaly updates the consecutive signal-anomaly streak for an AP
// and returns the new streak length.
func (s *Store) NoteAnomaly(bssid string, anomalous bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.lookup(bssid)
	if !found {
		return 0, fmt.Errorf("unknown BSSID %s", bssid)
	}
	if anomalous {
		rec.AnomalyStreak++
	} else {
		rec.AnomalyStreak = 0
	}
	if err := s.persist(rec, nil); err != nil {
		return 0, err
	}
	s.index.ReplaceOrInsert(rec)
	return rec.AnomalyStreak, nil
}

// CurrentRevision returns the observation journal revision.
func (s *Store) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// Compact drops journal entries older than keepRevisions behind the
// current revision. Records and baselines are untouched.
func (s *Store) Compact(keepRevisions int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.currentRev - keepRevisions
	if cutoff <= 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketObservations)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			rev, _ := parseObservationKey(k)
			if rev < cutoff {
				toDelete = append(toDelete, k)
			}
		}

		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// lookup finds a record in the index. Caller holds the lock.
func (s *Store) lookup(bssid string) (*Record, bool) {
	return s.index.Get(&Record{BSSID: bssid})
}

// persist writes the record and, when obs is non-nil, journals the
// observation under the current revision. Caller holds the lock.
func (s *Store) persist(rec *Record, obs *types.Observation) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketRecords).Put([]byte(rec.BSSID), value); err != nil {
			return err
		}

		if obs != nil {
			obsValue, err := json.Marshal(obs)
			if err != nil {
				return err
			}
			key := makeObservationKey(s.currentRev, rec.BSSID)
			if err := tx.Bucket(bucketObservations).Put(key, obsValue); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Put(keyCurrentRevision, int64ToBytes(s.currentRev))
	})
}

func (s *Store) loadRevision() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyCurrentRevision); data != nil {
			s.currentRev = bytesToInt64(data)
		}
		return nil
	})
}

func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt record %s: %w", k, err)
			}
			s.index.ReplaceOrInsert(&rec)
			return nil
		})
	})
}

func makeObservationKey(rev int64, bssid string) []byte {
	return []byte(fmt.Sprintf("%016d:%s", rev, bssid))
}

func parseObservationKey(key []byte) (int64, string) {
	var rev int64
	var bssid string
	_, _ = fmt.Sscanf(string(key), "%016d:%s", &rev, &bssid)
	return rev, bssid
}

func int64ToBytes(n int64) []byte {
	return []byte(fmt.Sprintf("%d", n))
}

func bytesToInt64(b []byte) int64 {
	var n int64
	_, _ = fmt.Sscanf(string(b), "%d", &n)
	return n
}
