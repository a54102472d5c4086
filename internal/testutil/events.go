package testutil

import (
	"fmt"
	"sync"
)

// RecordingEvents captures ledger events as formatted strings for assertion.
// Safe for concurrent use.
type RecordingEvents struct {
	mu     sync.Mutex
	events []string
}

func NewRecordingEvents() *RecordingEvents {
	return &RecordingEvents{}
}

func (r *RecordingEvents) ItemListed(itemID int64, creator, blobHandle string) {
	r.record(fmt.Sprintf("listed:%d:%s", itemID, creator))
}

func (r *RecordingEvents) ItemPurchased(itemID int64, buyer string, amount int64) {
	r.record(fmt.Sprintf("purchased:%d:%s:%d", itemID, buyer, amount))
}

func (r *RecordingEvents) AccessGranted(itemID int64, principal string) {
	r.record(fmt.Sprintf("granted:%d:%s", itemID, principal))
}

// Events returns a copy of the recorded events in order.
func (r *RecordingEvents) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *RecordingEvents) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}
