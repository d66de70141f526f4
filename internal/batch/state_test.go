package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AssetVal/HeatMap/pkg/verify"
)

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "0s", FormatETA(0))
	assert.Equal(t, "0s", FormatETA(-3))
	assert.Equal(t, "45s", FormatETA(45))
	assert.Equal(t, "59s", FormatETA(59))
	assert.Equal(t, "1m 0s", FormatETA(60))
	assert.Equal(t, "2m 5s", FormatETA(125))
}

func TestStartProcessing_DiscardsPriorState(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prior := State{
		Failed:          2,
		FailedAddresses: []verify.Address{{Street: "old"}},
		IsSuccess:       true,
		ShareID:         "abc",
	}

	s := prior.StartProcessing(5, start)
	assert.True(t, s.IsLoading)
	assert.Equal(t, 5, s.Total)
	assert.Zero(t, s.Progress)
	assert.Zero(t, s.Failed)
	assert.Empty(t, s.FailedAddresses)
	assert.False(t, s.IsSuccess)
	assert.Empty(t, s.ShareID)
	assert.Equal(t, start, s.StartTime)
	assert.Empty(t, s.ETA, "no ETA before the first completed item")
}

func TestAdvance_ComputesCumulativeAverageETA(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := State{}.StartProcessing(4, start)

	// First item took 10s; 3 remain at 10s each.
	s = s.Advance(start.Add(10 * time.Second))
	assert.Equal(t, 1, s.Progress)
	assert.Equal(t, "30s", s.ETA)

	// Two items in 130s: avg 65s, 2 remain -> 130s.
	s = s.Advance(start.Add(130 * time.Second))
	assert.Equal(t, "2m 10s", s.ETA)
}

func TestAdvance_ETARoundsUp(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := State{}.StartProcessing(2, start)
	// 1.5s elapsed for one item: 1.5s remaining, ceil to 2.
	s = s.Advance(start.Add(1500 * time.Millisecond))
	assert.Equal(t, "2s", s.ETA)
}

func TestRecordFailure_ConsumesProgressSlot(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := State{}.StartProcessing(2, start)

	failed := verify.Address{Street: "1 Nowhere Ln", City: "X", State: "IL", Zip: "00000"}
	s = s.RecordFailure(failed, start.Add(time.Second))

	assert.Equal(t, 1, s.Progress)
	assert.Equal(t, 1, s.Failed)
	require.Len(t, s.FailedAddresses, 1)
	assert.Equal(t, failed, s.FailedAddresses[0])
}

func TestRecordFailure_DoesNotMutateOriginal(t *testing.T) {
	start := time.Now()
	s := State{}.StartProcessing(3, start)
	s1 := s.RecordFailure(verify.Address{Street: "a"}, start)
	s2 := s1.RecordFailure(verify.Address{Street: "b"}, start)

	assert.Empty(t, s.FailedAddresses)
	assert.Len(t, s1.FailedAddresses, 1)
	assert.Len(t, s2.FailedAddresses, 2)
}

func TestFinish(t *testing.T) {
	s := State{IsLoading: true, ETA: "45s"}.Finish(true)
	assert.False(t, s.IsLoading)
	assert.True(t, s.IsSuccess)
	assert.Equal(t, "0s", s.ETA)

	s = State{IsLoading: true}.Finish(false)
	assert.False(t, s.IsSuccess)
}

func TestShareTransitions(t *testing.T) {
	s := State{}.WithShareError("store unreachable")
	assert.Equal(t, "store unreachable", s.ShareError)

	s = s.WithShare("abc-123")
	assert.Equal(t, "abc-123", s.ShareID)
	assert.Empty(t, s.ShareError, "a successful share clears the prior error")
}
