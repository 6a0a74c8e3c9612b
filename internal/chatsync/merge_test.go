package chatsync

import (
	"math/rand"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/Talkie/chatsync/internal/models"
)

func TestMergeDelta(t *testing.T) {
	anchor20 := ts(20)

	tests := []struct {
		name        string
		existing    []models.Message
		anchor      *time.Time
		delta       []models.Message
		wantIDs     []string
		wantAnchor  *time.Time
		wantChanged bool
	}{
		{
			name:        "empty delta",
			existing:    []models.Message{msg("1", 10), msg("2", 20)},
			anchor:      &anchor20,
			wantIDs:     []string{"1", "2"},
			wantAnchor:  &anchor20,
			wantChanged: false,
		},
		{
			name:        "inclusive boundary entry is dropped",
			existing:    []models.Message{msg("1", 10), msg("2", 20)},
			anchor:      &anchor20,
			delta:       []models.Message{msg("2", 20), msg("3", 30)},
			wantIDs:     []string{"1", "2", "3"},
			wantAnchor:  ptr(ts(30)),
			wantChanged: true,
		},
		{
			name:        "only known entries",
			existing:    []models.Message{msg("1", 10), msg("2", 20)},
			anchor:      &anchor20,
			delta:       []models.Message{msg("2", 20), msg("1", 10)},
			wantIDs:     []string{"1", "2"},
			wantAnchor:  &anchor20,
			wantChanged: false,
		},
		{
			name:        "unsorted delta",
			existing:    []models.Message{msg("1", 10)},
			anchor:      ptr(ts(10)),
			delta:       []models.Message{msg("4", 40), msg("2", 20), msg("3", 30)},
			wantIDs:     []string{"1", "2", "3", "4"},
			wantAnchor:  ptr(ts(40)),
			wantChanged: true,
		},
		{
			name:        "duplicates inside the delta",
			existing:    []models.Message{msg("1", 10)},
			anchor:      ptr(ts(10)),
			delta:       []models.Message{msg("2", 20), msg("2", 20)},
			wantIDs:     []string{"1", "2"},
			wantAnchor:  ptr(ts(20)),
			wantChanged: true,
		},
		{
			name:        "anchor uses whole delta not just novel entries",
			existing:    []models.Message{msg("1", 10), msg("3", 30)},
			anchor:      ptr(ts(20)),
			delta:       []models.Message{msg("2", 25), msg("3", 30)},
			wantIDs:     []string{"1", "2", "3"},
			wantAnchor:  ptr(ts(30)),
			wantChanged: true,
		},
		{
			name:        "anchor never regresses",
			existing:    []models.Message{msg("1", 10), msg("5", 50)},
			anchor:      ptr(ts(50)),
			delta:       []models.Message{msg("2", 20)},
			wantIDs:     []string{"1", "2", "5"},
			wantAnchor:  ptr(ts(50)),
			wantChanged: true,
		},
		{
			name:        "equal timestamps ordered by id",
			existing:    []models.Message{msg("a", 10)},
			anchor:      ptr(ts(10)),
			delta:       []models.Message{msg("c", 10), msg("b", 10)},
			wantIDs:     []string{"a", "b", "c"},
			wantAnchor:  ptr(ts(10)),
			wantChanged: true,
		},
		{
			name:        "first messages of an empty list",
			delta:       []models.Message{msg("1", 10)},
			wantIDs:     []string{"1"},
			wantAnchor:  ptr(ts(10)),
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := slices.Clone(tt.existing)
			merged, anchor, changed := MergeDelta(existing, tt.anchor, tt.delta)

			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantIDs, ids(merged))
			if tt.wantAnchor == nil {
				assert.Nil(t, anchor)
			} else {
				require.NotNil(t, anchor)
				assert.True(t, tt.wantAnchor.Equal(*anchor), "anchor %v, want %v", *anchor, *tt.wantAnchor)
			}
			assert.Equal(t, tt.existing, existing, "existing slice must not be modified")
		})
	}
}

func TestMergeDelta_UnchangedReturnsSameSlice(t *testing.T) {
	existing := []models.Message{msg("1", 10)}
	anchor := ts(10)

	merged, next, changed := MergeDelta(existing, &anchor, []models.Message{msg("1", 10)})

	assert.False(t, changed)
	assert.Same(t, &existing[0], &merged[0])
	assert.Same(t, &anchor, next)
}

// Replays random overlapping batches from one timeline and checks that the
// merged list stays sorted, unique and complete, and that redelivery is a no-op.
func TestMergeDelta_RandomOverlappingBatches(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	var timeline []models.Message
	for i := 0; i < 200; i++ {
		// Several messages may share a second.
		timeline = append(timeline, msg(strconv.Itoa(i), i/3))
	}

	var list []models.Message
	var anchor *time.Time
	pos := 0
	for pos < len(timeline) {
		start := pos - rng.Intn(4)
		if start < 0 {
			start = 0
		}
		end := pos + 1 + rng.Intn(6)
		if end > len(timeline) {
			end = len(timeline)
		}
		batch := slices.Clone(timeline[start:end])
		rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })

		prevAnchor := anchor
		list, anchor, _ = MergeDelta(list, anchor, batch)
		if prevAnchor != nil {
			require.False(t, anchor.Before(*prevAnchor), "anchor regressed")
		}

		again, againAnchor, changed := MergeDelta(list, anchor, batch)
		require.False(t, changed)
		require.Equal(t, list, again)
		require.Equal(t, anchor, againAnchor)

		assertOrderedUnique(t, list)
		pos = end
	}

	require.Len(t, list, len(timeline))
	assert.True(t, timeline[len(timeline)-1].CreatedAt.Equal(*anchor))
}

func TestNormalize(t *testing.T) {
	in := []models.Message{msg("3", 30), msg("1", 10), msg("3", 30), msg("2", 20)}

	out := Normalize(in)

	assert.Equal(t, []string{"1", "2", "3"}, ids(out))
	assert.Equal(t, "3", in[0].ID, "input must not be reordered")
	assertOrderedUnique(t, out)
}

func TestLatestTimestamp(t *testing.T) {
	assert.Nil(t, LatestTimestamp(nil))

	latest := LatestTimestamp([]models.Message{msg("1", 10), msg("2", 20)})
	require.NotNil(t, latest)
	assert.Equal(t, ts(20), *latest)
}

func assertOrderedUnique(t *testing.T, msgs []models.Message) {
	t.Helper()
	seen := make(map[string]bool, len(msgs))
	for i, m := range msgs {
		require.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
		if i > 0 {
			require.Negative(t, compareMessages(msgs[i-1], m), "messages out of order at %d", i)
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
