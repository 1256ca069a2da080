// Package schedule keeps the daily send times.
package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dailysender/internal/shared"
)

// Trigger is a daily firing point at Hour:Minute in the configured zone.
type Trigger struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Defaults are served while no schedule file has been written yet.
func Defaults() []Trigger {
	return []Trigger{{Hour: 9}, {Hour: 12}, {Hour: 15}}
}

// NewTrigger validates hour and minute.
func NewTrigger(hour, minute int) (Trigger, error) {
	t := Trigger{Hour: hour, Minute: minute}
	if !t.Valid() {
		return Trigger{}, fmt.Errorf("%w: %02d:%02d", shared.ErrInvalidTime, hour, minute)
	}
	return t, nil
}

// ParseTrigger parses "H:MM" or "HH:MM".
func ParseTrigger(s string) (Trigger, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Trigger{}, fmt.Errorf("%w: %q is not HH:MM", shared.ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return Trigger{}, fmt.Errorf("%w: hour %q", shared.ErrInvalidTime, hs)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || len(ms) != 2 {
		return Trigger{}, fmt.Errorf("%w: minute %q", shared.ErrInvalidTime, ms)
	}
	return NewTrigger(h, m)
}

// Valid reports whether the trigger is inside the day.
func (t Trigger) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// String renders HH:MM.
func (t Trigger) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// CronSpec renders a six-field cron expression (seconds first) firing daily.
func (t Trigger) CronSpec() string {
	return fmt.Sprintf("0 %d %d * * *", t.Minute, t.Hour)
}

// Less orders triggers by time of day.
func (t Trigger) Less(o Trigger) bool {
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	return t.Minute < o.Minute
}

// Compare returns -1, 0 or +1 for use with slices.SortFunc.
func Compare(a, b Trigger) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// document is the on-disk shape: {"schedules": [...]}, or a bare array.
type document struct {
	Schedules []entry `json:"schedules"`
}

func (d *document) UnmarshalJSON(b []byte) error {
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &d.Schedules)
	}
	type plain document
	return json.Unmarshal(b, (*plain)(d))
}

// entry decodes one stored trigger without failing the whole document.
type entry struct {
	Trigger
	bad string
}

func (e *entry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Hour   *int `json:"hour"`
		Minute *int `json:"minute"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		e.bad = err.Error()
		return nil
	}
	if raw.Hour == nil || raw.Minute == nil {
		e.bad = "hour and minute are required"
		return nil
	}
	e.Trigger = Trigger{Hour: *raw.Hour, Minute: *raw.Minute}
	if !e.Valid() {
		e.bad = "time out of range"
	}
	return nil
}

func (e entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Trigger)
}
