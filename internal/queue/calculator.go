package queue

import (
	"sort"

	"github.com/google/uuid"
)

// ComputePositions orders the waiting tokens of one doctor by descending
// priority then ascending creation time, and writes the 1-based position's
// wait estimate into each token: (position-1) × avgConsultMinutes. The token
// at position 1 always gets 0. The input slice is sorted in place and
// returned.
func ComputePositions(waiting []*Token, avgConsultMinutes int) []*Token {
	sort.SliceStable(waiting, func(i, j int) bool {
		if waiting[i].Priority != waiting[j].Priority {
			return waiting[i].Priority > waiting[j].Priority
		}
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})

	for i, t := range waiting {
		t.EstimatedWaitMinutes = i * avgConsultMinutes
	}
	return waiting
}

// PositionOf returns the 1-based rank of tokenID within an ordered waiting
// set, or 0 when absent.
func PositionOf(ordered []*Token, tokenID uuid.UUID) int {
	for i, t := range ordered {
		if t.ID == tokenID {
			return i + 1
		}
	}
	return 0
}
