package game

import (
	"fmt"
	"strings"
	"sync"
)

// ActionLedger tracks submitted actions for the current round only.
// Keys are lower-cased participant ids; at most one entry per participant.
// Safe for concurrent inserts on distinct keys and guarded against
// concurrent duplicate submission on the same key.
type ActionLedger struct {
	mu      sync.Mutex
	roster  []string // lower-cased, stable order
	entries map[string]Action
}

// NewActionLedger creates a ledger bound to the given roster of
// participant ids (any case).
func NewActionLedger(roster []string) *ActionLedger {
	l := &ActionLedger{}
	l.Reset(roster)
	return l
}

// Submit stores an action. Fails with ErrUnknownParticipant when the
// action's participant id is not in the roster and ErrDuplicateSubmission
// when that participant already has an entry this round.
func (l *ActionLedger) Submit(a Action) error {
	key := strings.ToLower(a.ParticipantID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.inRoster(key) {
		return fmt.Errorf("%w: %q", ErrUnknownParticipant, a.ParticipantID)
	}
	if _, exists := l.entries[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSubmission, a.ParticipantID)
	}
	l.entries[key] = a
	return nil
}

// Missing returns the roster ids with no ledger entry, in roster order.
// These are the participants that need an AI-generated action this round.
func (l *ActionLedger) Missing() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var missing []string
	for _, id := range l.roster {
		if _, ok := l.entries[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// All returns the full collected action list in roster order. It fails
// with ErrRosterIncomplete unless every roster id has an entry; callers
// use it only after the AI fan-out barrier.
func (l *ActionLedger) All() ([]Action, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	actions := make([]Action, 0, len(l.roster))
	for _, id := range l.roster {
		a, ok := l.entries[id]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrRosterIncomplete, id)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// Has reports whether the participant already has an entry this round.
func (l *ActionLedger) Has(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[strings.ToLower(id)]
	return ok
}

// Len returns the number of collected actions.
func (l *ActionLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops all entries, keeping the roster.
func (l *ActionLedger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]Action, len(l.roster))
}

// Reset rebinds the ledger to a new roster and drops all entries.
func (l *ActionLedger) Reset(roster []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roster = make([]string, 0, len(roster))
	for _, id := range roster {
		l.roster = append(l.roster, strings.ToLower(id))
	}
	l.entries = make(map[string]Action, len(l.roster))
}

func (l *ActionLedger) inRoster(key string) bool {
	for _, id := range l.roster {
		if id == key {
			return true
		}
	}
	return false
}
