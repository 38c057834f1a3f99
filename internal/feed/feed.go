// Package feed retrieves the current availability dataset, either from the
// public HTTP endpoint or from a local file in the same format.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bassista/court_watch/internal/model"
)

// ErrRetriesExhausted is returned when every fetch attempt failed.
var ErrRetriesExhausted = errors.New("fetch retries exhausted")

// Fetcher retrieves the current dataset.
type Fetcher interface {
	Fetch(ctx context.Context) (model.Dataset, error)
}

// DecodeStats reports how much of a payload had to be normalised.
type DecodeStats struct {
	Records          int
	Skipped          int // entries that were not JSON objects
	NormalisedCounts int // counts that were present but unusable and became 0
}

// text decodes any JSON scalar as a string; null and non-scalars become "".
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*t = ""
			return nil
		}
		*t = text(s)
	case 'n', '{', '[':
		*t = ""
	default:
		// numbers and booleans keep their literal form
		*t = text(data)
	}
	return nil
}

// record is one entry of the upstream feed.
type record struct {
	District text            `json:"District_Name"`
	Venue    text            `json:"Venue_Name"`
	Date     text            `json:"Available_Date"`
	Start    text            `json:"Session_Start_Time"`
	End      text            `json:"Session_End_Time"`
	Courts   json.RawMessage `json:"Available_Courts"`
}

func (r record) slot() (model.Slot, bool) {
	courts, ok := model.ParseCount(r.Courts)
	return model.Slot{
		Venue:           string(r.Venue),
		District:        strings.TrimSpace(string(r.District)),
		Date:            string(r.Date),
		SessionStart:    string(r.Start),
		SessionEnd:      string(r.End),
		AvailableCourts: courts,
	}, ok
}

// Decode parses a feed payload: either a JSON array of records or an object
// wrapping the array under "data". Individual bad records never fail the
// whole payload.
func Decode(body []byte) (model.Dataset, DecodeStats, error) {
	var stats DecodeStats

	body = bytes.TrimSpace(body)
	var items []json.RawMessage
	switch {
	case len(body) == 0:
		return nil, stats, errors.New("empty feed payload")
	case body[0] == '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, stats, fmt.Errorf("decode feed array: %w", err)
		}
	case body[0] == '{':
		var wrapper struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, stats, fmt.Errorf("decode feed object: %w", err)
		}
		if wrapper.Data == nil {
			return nil, stats, errors.New(`feed object has no "data" array`)
		}
		items = wrapper.Data
	default:
		return nil, stats, fmt.Errorf("unexpected feed payload starting with %s", strconv.Quote(string(body[:1])))
	}

	ds := make(model.Dataset, 0, len(items))
	for _, raw := range items {
		stats.Records++
		var r record
		if err := json.Unmarshal(raw, &r); err != nil || !isObject(raw) {
			stats.Skipped++
			continue
		}
		s, ok := r.slot()
		if !ok {
			stats.NormalisedCounts++
		}
		ds = append(ds, s)
	}
	return ds, stats, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
