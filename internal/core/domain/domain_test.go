package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatchStatus_IsTerminal(t *testing.T) {
	assert.False(t, BatchInProgress.IsTerminal())
	assert.False(t, BatchCancelling.IsTerminal())
	assert.True(t, BatchCompleted.IsTerminal())
	assert.True(t, BatchFailed.IsTerminal())
	assert.True(t, BatchCancelled.IsTerminal())
}

func TestBatchStatus_Succeeded(t *testing.T) {
	assert.True(t, BatchCompleted.Succeeded())
	assert.False(t, BatchFailed.Succeeded())
	assert.False(t, BatchInProgress.Succeeded())
}

func TestSyncState_IsEmpty(t *testing.T) {
	assert.True(t, NewSyncState().IsEmpty())

	withMarker := NewSyncState()
	withMarker.LastRunMarker = "2024-06-01T00:00:00Z"
	assert.False(t, withMarker.IsEmpty())

	withMapping := NewSyncState()
	withMapping.Mapping["1"] = "ext-1"
	assert.False(t, withMapping.IsEmpty())
}

func TestSyncState_Clone_DoesNotAlias(t *testing.T) {
	state := NewSyncState()
	state.LastRunMarker = "2024-06-01T00:00:00Z"
	state.Mapping["1"] = "ext-1"

	clone := state.Clone()
	clone.Mapping["1"] = "mutated"
	clone.Mapping["2"] = "added"

	assert.Equal(t, "ext-1", state.Mapping["1"])
	assert.NotContains(t, state.Mapping, "2")
	assert.Equal(t, state.LastRunMarker, clone.LastRunMarker)
}

func TestMarkerFromTime_RFC3339UTC(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	marker := MarkerFromTime(time.Date(2024, 6, 1, 14, 30, 0, 0, loc))

	assert.Equal(t, "2024-06-01T12:30:00Z", marker)
}

func TestMarkerFromTime_OrderingMatchesChronology(t *testing.T) {
	earlier := MarkerFromTime(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	later := MarkerFromTime(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))

	assert.Less(t, earlier, later)
}

func TestChangeSet_IsEmpty(t *testing.T) {
	assert.True(t, ChangeSet{}.IsEmpty())
	assert.True(t, ChangeSet{Unchanged: []Item{{ID: "1"}}}.IsEmpty())
	assert.False(t, ChangeSet{New: []Item{{ID: "1"}}}.IsEmpty())
	assert.False(t, ChangeSet{Deleted: []string{"1"}}.IsEmpty())
}

func TestChangeSet_Total(t *testing.T) {
	c := ChangeSet{
		New:       []Item{{ID: "1"}},
		Updated:   []Item{{ID: "2"}, {ID: "3"}},
		Deleted:   []string{"4"},
		Unchanged: []Item{{ID: "5"}},
	}
	assert.Equal(t, 4, c.Total())
}

func TestItemFailure_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	f := ItemFailure{ItemID: "1", Title: "One", Err: cause}

	assert.Equal(t, "item 1 (One): boom", f.Error())
	assert.ErrorIs(t, f, cause)

	noTitle := ItemFailure{ItemID: "2", Err: cause}
	assert.Equal(t, "item 2: boom", noTitle.Error())
}

func TestFailAll(t *testing.T) {
	cause := errors.New("register down")
	failures := FailAll([]Item{{ID: "1", Title: "A"}, {ID: "2", Title: "B"}}, cause)

	assert.Len(t, failures, 2)
	for _, f := range failures {
		assert.ErrorIs(t, f, cause)
	}
	assert.Equal(t, "1", failures[0].ItemID)
	assert.Equal(t, "2", failures[1].ItemID)
}
