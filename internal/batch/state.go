// Package batch drives address resolution over an ordered input list,
// sequentially and rate-paced, tracking progress through an explicit state
// value updated by pure transitions.
package batch

import (
	"fmt"
	"math"
	"time"

	"github.com/AssetVal/HeatMap/pkg/verify"
)

// State is the observable lifecycle of one batch run. Transitions are value
// methods returning a new State, so the machine is testable without a runner.
type State struct {
	IsLoading       bool
	Total           int
	Progress        int
	Failed          int
	FailedAddresses []verify.Address
	// ETA is the human-readable remaining-time estimate. Empty until the
	// first item completes.
	ETA        string
	StartTime  time.Time
	IsSuccess  bool
	ShareID    string
	ShareError string
}

// StartProcessing resets the state for a new run. Any prior failure or
// success data is discarded.
func (s State) StartProcessing(total int, now time.Time) State {
	return State{
		IsLoading: true,
		Total:     total,
		StartTime: now,
	}
}

// Advance consumes one progress slot for a successful item and recomputes
// the ETA.
func (s State) Advance(now time.Time) State {
	s.Progress++
	s.ETA = s.computeETA(now)
	return s
}

// RecordFailure consumes one progress slot for a failed item. Failures are
// not retried; the address is kept for reporting.
func (s State) RecordFailure(addr verify.Address, now time.Time) State {
	s.Failed++
	s.FailedAddresses = append(append([]verify.Address{}, s.FailedAddresses...), addr)
	s.Progress++
	s.ETA = s.computeETA(now)
	return s
}

// Finish marks the run terminal. The success flag is the caller's call:
// partial failures may still count as overall success.
func (s State) Finish(success bool) State {
	s.IsLoading = false
	s.IsSuccess = success
	s.ETA = FormatETA(0)
	return s
}

// WithShare records the identifier returned by the share gateway.
func (s State) WithShare(id string) State {
	s.ShareID = id
	s.ShareError = ""
	return s
}

// WithShareError records a share submission failure.
func (s State) WithShareError(msg string) State {
	s.ShareError = msg
	return s
}

// computeETA estimates remaining seconds from the cumulative average pace.
func (s State) computeETA(now time.Time) string {
	if s.Progress <= 0 {
		return s.ETA
	}
	elapsed := now.Sub(s.StartTime).Seconds()
	avg := elapsed / float64(s.Progress)
	remaining := int(math.Ceil(float64(s.Total-s.Progress) * avg))
	return FormatETA(remaining)
}

// FormatETA renders a second count as "45s" under a minute, else "2m 5s".
func FormatETA(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
