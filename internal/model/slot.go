package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Count is a non-negative court count. It decodes leniently: numbers, numeric
// strings, null and missing values are all accepted, anything unusable is 0.
type Count int

// ParseCount normalises a raw JSON value into a Count.
// ok is false when the value was present but had to be replaced by 0.
func ParseCount(raw json.RawMessage) (c Count, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, true
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return 0, true
		}
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// Accept integral floats such as 2.0.
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, false
		}
		n = int64(f)
	}
	if n < 0 {
		return 0, false
	}
	return Count(n), true
}

// UnmarshalJSON never fails; see ParseCount.
func (c *Count) UnmarshalJSON(data []byte) error {
	*c, _ = ParseCount(data)
	return nil
}

// Int returns the count as a plain int.
func (c Count) Int() int {
	return int(c)
}

// Slot is one bookable time window at one venue on one date.
type Slot struct {
	Venue           string `json:"venue"`
	District        string `json:"district"`
	Date            string `json:"date"`
	SessionStart    string `json:"sessionStart"`
	SessionEnd      string `json:"sessionEnd"`
	AvailableCourts Count  `json:"availableCourts"`
}

// SlotKey identifies a slot across snapshots. SessionEnd and District are
// deliberately not part of it.
type SlotKey struct {
	Venue        string
	Date         string
	SessionStart string
}

// Key returns the identity key of the slot.
func (s Slot) Key() SlotKey {
	return SlotKey{Venue: s.Venue, Date: s.Date, SessionStart: s.SessionStart}
}

// TimeRange renders "start-end".
func (s Slot) TimeRange() string {
	return s.SessionStart + "-" + s.SessionEnd
}

// Dataset is the ordered list of slots returned by one poll.
type Dataset []Slot

// Index builds a key lookup; later duplicates overwrite earlier ones.
func (d Dataset) Index() map[SlotKey]Slot {
	idx := make(map[SlotKey]Slot, len(d))
	for _, s := range d {
		idx[s.Key()] = s
	}
	return idx
}

// Clone returns a copy that shares no backing array with d.
func (d Dataset) Clone() Dataset {
	if d == nil {
		return nil
	}
	out := make(Dataset, len(d))
	copy(out, d)
	return out
}
