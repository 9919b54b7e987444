package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransferTransitions(t *testing.T) {
	allowed := []struct{ from, to TransferStatus }{
		{TransferStatusPending, TransferStatusAccepted},
		{TransferStatusPending, TransferStatusDeclined},
		{TransferStatusPending, TransferStatusCancelled},
		{TransferStatusAccepted, TransferStatusBedAssigned},
		{TransferStatusAccepted, TransferStatusCancelled},
		{TransferStatusBedAssigned, TransferStatusInTransit},
		{TransferStatusBedAssigned, TransferStatusCancelled},
		{TransferStatusInTransit, TransferStatusCompleted},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to TransferStatus }{
		{TransferStatusPending, TransferStatusCompleted},
		{TransferStatusInTransit, TransferStatusCancelled},
		{TransferStatusCompleted, TransferStatusPending},
		{TransferStatusDeclined, TransferStatusAccepted},
		{TransferStatusCancelled, TransferStatusAccepted},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestWelfareTransitions(t *testing.T) {
	assert.True(t, WelfareStatusRequested.CanTransition(WelfareStatusDispatched))
	assert.True(t, WelfareStatusDispatched.CanTransition(WelfareStatusOnScene))
	assert.True(t, WelfareStatusOnScene.CanTransition(WelfareStatusCompleted))
	assert.True(t, WelfareStatusDispatched.CanTransition(WelfareStatusUnableToLocate))
	assert.False(t, WelfareStatusRequested.CanTransition(WelfareStatusCompleted))
	assert.False(t, WelfareStatusCompleted.CanTransition(WelfareStatusCancelled))
	assert.True(t, WelfareStatusOnScene.Open())
	assert.False(t, WelfareStatusUnableToLocate.Open())
}

func TestTimeSlotOverlapsHalfOpen(t *testing.T) {
	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	a := TimeSlot{Start: base, End: base.Add(30 * time.Minute)}
	b := TimeSlot{Start: base.Add(30 * time.Minute), End: base.Add(time.Hour)}
	c := TimeSlot{Start: base.Add(15 * time.Minute), End: base.Add(45 * time.Minute)}

	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(b))
}

func TestStatusLabelAndColor(t *testing.T) {
	assert.Equal(t, "Bed Assigned", StatusLabel("bed_assigned"))
	assert.Equal(t, "Unable to Locate", StatusLabel("unable_to_locate"))
	assert.Equal(t, "Some New State", StatusLabel("some_new_state"))

	assert.Equal(t, "red", PriorityColor("critical"))
	assert.Equal(t, "orange", PriorityColor("emergent"))
	assert.Equal(t, "gray", PriorityColor("unknown"))

	badges := Badges("high", "in_transit", "", "high")
	assert.Len(t, badges, 2)
	assert.Equal(t, Badge{Label: "High", Color: "orange"}, badges["high"])
	assert.Equal(t, Badge{Label: "In Transit", Color: "gray"}, badges["in_transit"])
}

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	assert.NoError(t, m.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, float64(1), m["a"])
	assert.NoError(t, m.Scan(nil))
	assert.Empty(t, m)
	assert.Error(t, m.Scan(42))
}

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{Page: 0, PageSize: 1000}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 200, p.PageSize)
	assert.Equal(t, 0, p.Offset())

	p = Pagination{Page: 3, PageSize: 20}
	p.Normalize()
	assert.Equal(t, 40, p.Offset())
}
