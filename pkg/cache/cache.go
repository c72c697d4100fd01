// Package cache holds the last-known-good data derived from the external
// services. Refresh loops are the only writers; HTTP handlers read without
// ever blocking on a refresh. Each entry is replaced wholesale, so a reader
// sees either the old snapshot or the new one, never a mix.
package cache

import (
	"slices"
	"sync"
	"time"

	"github.com/openclock/clockd/pkg/msauth"
	"github.com/openclock/clockd/pkg/untis"
)

// Store is the in-memory data cache. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	lessons        []untis.Lesson
	lessonsUpdated time.Time

	holidays        []untis.Holiday
	holidaysUpdated time.Time

	token        *msauth.Token
	tokenUpdated time.Time
}

// NewStore creates an empty cache.
func NewStore() *Store {
	return &Store{}
}

// SetLessons replaces the timetable snapshot. Entries are copied and kept
// sorted ascending by start time.
func (s *Store) SetLessons(lessons []untis.Lesson) {
	sorted := slices.Clone(lessons)
	slices.SortStableFunc(sorted, func(a, b untis.Lesson) int {
		return a.Start.Compare(b.Start)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons = sorted
	s.lessonsUpdated = time.Now()
}

// Lessons returns the current timetable snapshot and its update time. The
// returned slice is a copy; callers may not mutate cache internals.
func (s *Store) Lessons() ([]untis.Lesson, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lessons), s.lessonsUpdated
}

// SetHolidays replaces the holiday snapshot.
func (s *Store) SetHolidays(holidays []untis.Holiday) {
	copied := slices.Clone(holidays)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays = copied
	s.holidaysUpdated = time.Now()
}

// Holidays returns the current holiday snapshot and its update time.
func (s *Store) Holidays() ([]untis.Holiday, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.holidays), s.holidaysUpdated
}

// SetToken replaces the cached mail token.
func (s *Store) SetToken(tok *msauth.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok == nil {
		s.token = nil
	} else {
		copied := *tok
		s.token = &copied
	}
	s.tokenUpdated = time.Now()
}

// Token returns a copy of the cached mail token, and whether one is cached.
func (s *Store) Token() (msauth.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return msauth.Token{}, false
	}
	return *s.token, true
}

// ClearToken drops the cached mail token.
func (s *Store) ClearToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.tokenUpdated = time.Now()
}

// CurrentLesson returns the lesson running at now, if any.
func (s *Store) CurrentLesson(now time.Time) (untis.Lesson, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.lessons {
		if !now.Before(l.Start) && !now.After(l.End) {
			return l, true
		}
	}
	return untis.Lesson{}, false
}

// LessonsOn returns the lessons starting on the same calendar day as day.
func (s *Store) LessonsOn(day time.Time) []untis.Lesson {
	y, m, d := day.Date()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []untis.Lesson
	for _, l := range s.lessons {
		ly, lm, ld := l.Start.Date()
		if ly == y && lm == m && ld == d {
			out = append(out, l)
		}
	}
	return out
}

// LessonsBetween returns the lessons starting in [start, end].
func (s *Store) LessonsBetween(start, end time.Time) []untis.Lesson {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []untis.Lesson
	for _, l := range s.lessons {
		if !l.Start.Before(start) && !l.Start.After(end) {
			out = append(out, l)
		}
	}
	return out
}

// NextHoliday returns the soonest holiday starting after now, if any.
// The snapshot is not ordered; scan for the minimum.
func (s *Store) NextHoliday(now time.Time) (untis.Holiday, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  untis.Holiday
		found bool
	)
	for _, h := range s.holidays {
		if !h.Start.After(now) {
			continue
		}
		if !found || h.Start.Before(best.Start) {
			best = h
			found = true
		}
	}
	return best, found
}

// Counts reports snapshot sizes for status endpoints.
func (s *Store) Counts() (lessons, holidays int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lessons), len(s.holidays)
}
