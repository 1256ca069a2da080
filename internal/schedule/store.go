package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"dailysender/internal/platform/jsonfile"
	"dailysender/internal/shared"
)

// FileName is the schedule file inside the data directory.
const FileName = "schedules.json"

// Store holds the ordered, deduplicated trigger set backed by a JSON file.
//
// Until the file has been written once the store serves Defaults(). Once
// written, the file is authoritative, including an empty list.
type Store struct {
	mu       sync.Mutex
	file     *jsonfile.File[document]
	logger   *slog.Logger
	triggers []Trigger
	stored   bool
	digest   uint64
}

// NewStore loads the store from path. A missing or malformed file is logged
// and leaves the store on defaults.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		file:   jsonfile.New[document](path),
		logger: logger.With("component", "schedule"),
	}
	if _, err := s.load(); err != nil {
		s.logger.Warn("schedule file unreadable, using defaults", "path", path, "error", err)
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.file.Path() }

// List returns the triggers in ascending order.
func (s *Store) List() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

// Add inserts hour:minute if it is not present yet and persists the result.
func (s *Store) Add(hour, minute int) error {
	t, err := NewTrigger(hour, minute)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current()
	if _, found := slices.BinarySearchFunc(next, t, Compare); found {
		if !s.stored {
			s.commit(next)
		}
		return nil
	}
	next = append(next, t)
	slices.SortFunc(next, Compare)
	s.commit(next)
	return nil
}

// Remove drops hour:minute. Removing an absent trigger is not an error.
func (s *Store) Remove(hour, minute int) error {
	t := Trigger{Hour: hour, Minute: minute}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.DeleteFunc(s.current(), func(x Trigger) bool { return x == t })
	s.commit(next)
	return nil
}

// Reload re-reads the backing file and reports whether the trigger list
// changed. On a read or decode error the in-memory state is kept.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// current returns a fresh copy; callers hold mu.
func (s *Store) current() []Trigger {
	if !s.stored {
		return Defaults()
	}
	return slices.Clone(s.triggers)
}

// commit makes next the in-memory state and writes it out. A failed write is
// logged; memory stays authoritative until the next successful save.
func (s *Store) commit(next []Trigger) {
	if next == nil {
		next = []Trigger{}
	}
	s.triggers = next
	s.stored = true

	doc := document{Schedules: make([]entry, len(next))}
	for i, t := range next {
		doc.Schedules[i] = entry{Trigger: t}
	}
	sum, err := s.file.Save(doc)
	if err != nil {
		s.logger.Error("save schedules", "path", s.file.Path(), "error", err)
		return
	}
	s.digest = sum
}

// load applies the file state; callers hold mu (or own s exclusively).
func (s *Store) load() (bool, error) {
	res, err := s.file.Load()
	if err != nil {
		return false, err
	}
	if res.Exists && res.Digest == s.digest && s.stored {
		return false, nil
	}

	before := s.current()
	if !res.Exists {
		s.triggers, s.stored, s.digest = nil, false, 0
		return !slices.Equal(before, s.current()), nil
	}

	next := make([]Trigger, 0, len(res.Value.Schedules))
	var dropped []error
	for i, e := range res.Value.Schedules {
		if e.bad != "" {
			dropped = append(dropped, fmt.Errorf("entry %d: %s", i, e.bad))
			continue
		}
		next = append(next, e.Trigger)
	}
	if len(dropped) > 0 {
		s.logger.Warn("dropped invalid schedule entries",
			"path", s.file.Path(),
			"count", len(dropped),
			"error", shared.MarkKind(errors.Join(dropped...), shared.KindInvalidTime))
	}
	slices.SortFunc(next, Compare)
	next = slices.Compact(next)

	s.triggers, s.stored, s.digest = next, true, res.Digest
	return !slices.Equal(before, next), nil
}
