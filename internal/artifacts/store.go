// Package artifacts manages transient on-disk audio blobs. Every generated
// file gets a deletion deadline; a background sweeper removes expired
// entries. Deletion is idempotent: a file already gone is not an error.
package artifacts

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type entry struct {
	path     string
	deadline time.Time
}

// Store schedules deletion of files after a per-artifact retention window.
// Retention is purely time-based; there is no size or LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries []entry

	interval time.Duration
	done     chan struct{}
	once     sync.Once
	log      zerolog.Logger
}

func NewStore() *Store {
	s := &Store{
		interval: time.Second,
		done:     make(chan struct{}),
		log:      log.With().Str("component", "artifact-store").Logger(),
	}
	go s.sweep()
	return s
}

// Put schedules deletion of the file at path after retention.
func (s *Store) Put(path string, retention time.Duration) {
	s.mu.Lock()
	s.entries = append(s.entries, entry{path: path, deadline: time.Now().Add(retention)})
	s.mu.Unlock()
	s.log.Debug().Str("path", path).Dur("retention", retention).Msg("artifact registered")
}

// Pending reports how many artifacts still await deletion.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper. Files not yet expired are left on disk.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Store) sweep() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.sweepOnce(now)
		}
	}
}

func (s *Store) sweepOnce(now time.Time) {
	s.mu.Lock()
	var due []string
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.deadline.After(now) {
			kept = append(kept, e)
			continue
		}
		due = append(due, e.path)
	}
	s.entries = kept
	s.mu.Unlock()

	for _, path := range due {
		if err := os.Remove(path); err != nil {
			// Already gone is the common case when an upload path was
			// reused for a failed job.
			s.log.Debug().Err(err).Str("path", path).Msg("artifact removal skipped")
			continue
		}
		s.log.Debug().Str("path", path).Msg("artifact removed")
	}
}
