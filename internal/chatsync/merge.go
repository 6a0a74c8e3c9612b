package chatsync

import (
	"slices"
	"strings"
	"time"

	"github.com/adi-253/Talkie/chatsync/internal/models"
)

// compareMessages orders by CreatedAt, then by ID so equal timestamps
// still have a total order.
func compareMessages(a, b models.Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SortMessages sorts msgs in place, oldest first.
func SortMessages(msgs []models.Message) {
	slices.SortStableFunc(msgs, compareMessages)
}

// Normalize returns a sorted copy of msgs with duplicate IDs removed.
// The first occurrence of an ID wins.
func Normalize(msgs []models.Message) []models.Message {
	seen := make(map[string]struct{}, len(msgs))
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	SortMessages(out)
	return out
}

// LatestTimestamp returns the CreatedAt of the last message in a sorted
// list, or nil for an empty list.
func LatestTimestamp(msgs []models.Message) *time.Time {
	if len(msgs) == 0 {
		return nil
	}
	t := msgs[len(msgs)-1].CreatedAt
	return &t
}

// MergeDelta folds a delta batch into existing, which must already be sorted
// and unique. Entries whose ID is already known are dropped. When at least one
// entry is novel the anchor advances to the newest timestamp of the whole
// sorted delta, never moving backwards. When nothing is novel, existing and
// anchor are returned untouched and changed is false.
func MergeDelta(existing []models.Message, anchor *time.Time, delta []models.Message) (merged []models.Message, next *time.Time, changed bool) {
	if len(delta) == 0 {
		return existing, anchor, false
	}

	sorted := slices.Clone(delta)
	SortMessages(sorted)

	seen := make(map[string]struct{}, len(existing)+len(sorted))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}

	var novel []models.Message
	for _, m := range sorted {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		novel = append(novel, m)
	}
	if len(novel) == 0 {
		return existing, anchor, false
	}

	merged = make([]models.Message, 0, len(existing)+len(novel))
	merged = append(merged, existing...)
	merged = append(merged, novel...)
	// A backend that returns something older than what we hold would
	// break the append-only order; fall back to a full sort then.
	if len(existing) > 0 && compareMessages(novel[0], existing[len(existing)-1]) < 0 {
		SortMessages(merged)
	}

	next = anchor
	last := sorted[len(sorted)-1].CreatedAt
	if anchor == nil || last.After(*anchor) {
		next = &last
	}
	return merged, next, true
}
