// Package detector compares two snapshots of the availability feed and
// reports the slots whose court count went up.
package detector

import "github.com/bassista/court_watch/internal/model"

// Detect returns the changes between previous and current, in current's order.
//
// Semantics:
//   - A nil previous is a baseline: nothing is reported, even for slots that
//     already show availability.
//   - Slots without a previous counterpart (by venue, date and session start)
//     are skipped.
//   - 0 -> n (n > 0) is NewAvailability; p -> n (n > p > 0) is
//     IncreasedAvailability. Equal or lower counts are silent.
func Detect(current model.Dataset, previous *model.Dataset) []model.Change {
	if previous == nil {
		return []model.Change{}
	}

	// Duplicate keys in previous: last one wins.
	prevByKey := previous.Index()

	changes := []model.Change{}
	for _, slot := range current {
		prev, ok := prevByKey[slot.Key()]
		if !ok {
			continue
		}

		cur := slot.AvailableCourts.Int()
		was := prev.AvailableCourts.Int()

		switch {
		case cur > 0 && was == 0:
			changes = append(changes, model.NewChange(model.NewAvailability, slot, 0, cur))
		case cur > was && was > 0:
			changes = append(changes, model.NewChange(model.IncreasedAvailability, slot, was, cur))
		}
	}
	return changes
}
