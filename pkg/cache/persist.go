package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/openclock/clockd/pkg/untis"
)

// snapshotFileMode matches the other on-device state files.
const snapshotFileMode = 0o600

// snapshot is the on-disk shape of the cache. The mail token is sensitive
// and deliberately not part of it; it lives in the identity service's own
// store.
type snapshot struct {
	Lessons         []untis.Lesson  `json:"lessons"`
	LessonsUpdated  time.Time       `json:"lessons_updated,omitzero"`
	Holidays        []untis.Holiday `json:"holidays"`
	HolidaysUpdated time.Time       `json:"holidays_updated,omitzero"`
}

// Save writes the current snapshot to path. Called by the lifecycle
// coordinator at shutdown from its own copy of the data, never from a
// refresh loop.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Lessons:         s.lessons,
		LessonsUpdated:  s.lessonsUpdated,
		Holidays:        s.holidays,
		HolidaysUpdated: s.holidaysUpdated,
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, snapshotFileMode); err != nil {
		return fmt.Errorf("writing cache snapshot: %w", err)
	}
	return nil
}

// Load restores a snapshot written by Save. Errors are returned for
// logging; the caller treats any failure as "start empty".
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding cache snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = snap.Lessons
	s.lessonsUpdated = snap.LessonsUpdated
	s.holidays = snap.Holidays
	s.holidaysUpdated = snap.HolidaysUpdated
	return nil
}
