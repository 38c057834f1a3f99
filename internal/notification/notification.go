// Package notification turns a change list into the title/body summary that
// operators read, keeping the full list for structured consumers.
package notification

import (
	"fmt"
	"strings"

	"github.com/bassista/court_watch/internal/model"
)

const (
	// SingleTitle is the banner used when exactly one slot changed.
	SingleTitle = model.SlotMarker + " Court available!"

	// MaxRendered is how many change messages make it into the body.
	MaxRendered = 3
)

// Notification is the summary of one detection cycle.
type Notification struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Changes []model.Change `json:"changes"`
}

// Format builds a Notification from changes, or returns nil when there are none.
// Only the first MaxRendered messages appear in Body; Changes always holds all of them.
func Format(changes []model.Change) *Notification {
	if len(changes) == 0 {
		return nil
	}

	all := make([]model.Change, len(changes))
	copy(all, changes)

	if len(all) == 1 {
		return &Notification{Title: SingleTitle, Body: all[0].Message, Changes: all}
	}

	shown := all
	if len(shown) > MaxRendered {
		shown = shown[:MaxRendered]
	}
	blocks := make([]string, 0, len(shown)+1)
	for _, c := range shown {
		blocks = append(blocks, c.Message)
	}
	if extra := len(all) - MaxRendered; extra > 0 {
		blocks = append(blocks, fmt.Sprintf("... and %d more changes", extra))
	}

	return &Notification{
		Title:   fmt.Sprintf("%s %d courts available!", model.SlotMarker, len(all)),
		Body:    strings.Join(blocks, "\n\n"),
		Changes: all,
	}
}
