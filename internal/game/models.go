package game

import (
	"sort"
	"strings"
)

// ActionKind categorizes a participant's round action.
type ActionKind string

const (
	KindDiplomacy ActionKind = "DIPLOMACY"
	KindMilitary  ActionKind = "MILITARY"
	KindEspionage ActionKind = "ESPIONAGE"
	KindEconomic  ActionKind = "ECONOMIC"
)

// ParseActionKind validates a raw kind string (case-insensitive).
func ParseActionKind(s string) (ActionKind, error) {
	switch ActionKind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindDiplomacy:
		return KindDiplomacy, nil
	case KindMilitary:
		return KindMilitary, nil
	case KindEspionage:
		return KindEspionage, nil
	case KindEconomic:
		return KindEconomic, nil
	}
	return "", &ValidationError{Field: "kind", Reason: "unknown action kind: " + s}
}

// Participant is an active figure in the simulation, AI or human-controlled.
// Owned by the world state; mutated only by the resolution merge step.
type Participant struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Perspective   string            `json:"perspective"`
	Style         string            `json:"style"`
	Goals         string            `json:"goals"`
	Resources     map[string]int    `json:"resources"`
	Statuses      map[string]string `json:"statuses"`
	KnownIntel    []string          `json:"known_intel"` // append-only
	VictoryPoints int               `json:"victory_points"`
}

func (p *Participant) Clone() *Participant {
	cp := *p
	cp.Resources = make(map[string]int, len(p.Resources))
	for k, v := range p.Resources {
		cp.Resources[k] = v
	}
	cp.Statuses = make(map[string]string, len(p.Statuses))
	for k, v := range p.Statuses {
		cp.Statuses[k] = v
	}
	cp.KnownIntel = append([]string(nil), p.KnownIntel...)
	return &cp
}

// Action is a single, concrete action submitted by a participant in a round.
// Immutable once submitted.
type Action struct {
	ParticipantID string         `json:"participant_id"`
	Reasoning     string         `json:"reasoning"`
	Kind          ActionKind     `json:"kind"`
	Details       string         `json:"details"`
	ResourceCost  map[string]int `json:"resource_cost"`
}

// WorldState is the complete state of the simulation at a specific round.
// Participant map keys are lower-cased participant ids.
type WorldState struct {
	RoundNumber      int                     `json:"round_number"`
	CrisisUpdate     string                  `json:"crisis_update"`
	Participants     map[string]*Participant `json:"participants"`
	LastRoundActions []Action                `json:"last_round_actions,omitempty"`
}

func (w *WorldState) Clone() *WorldState {
	cp := &WorldState{
		RoundNumber:      w.RoundNumber,
		CrisisUpdate:     w.CrisisUpdate,
		Participants:     make(map[string]*Participant, len(w.Participants)),
		LastRoundActions: append([]Action(nil), w.LastRoundActions...),
	}
	for k, p := range w.Participants {
		cp.Participants[k] = p.Clone()
	}
	return cp
}

// Roster returns the lower-cased participant ids in stable order.
func (w *WorldState) Roster() []string {
	ids := make([]string, 0, len(w.Participants))
	for id := range w.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup resolves a participant by id, case-insensitively.
func (w *WorldState) Lookup(id string) (*Participant, bool) {
	p, ok := w.Participants[strings.ToLower(id)]
	return p, ok
}

// ParticipantUpdate is a wholesale replacement of one participant's
// resource and status maps, as produced by round resolution.
type ParticipantUpdate struct {
	ParticipantID string            `json:"participant_id"`
	Resources     map[string]int    `json:"resources"`
	Statuses      map[string]string `json:"statuses"`
}

// IntelReport is a private report addressed to exactly one recipient.
type IntelReport struct {
	RecipientID string `json:"recipient_id"`
	Report      string `json:"report"`
}

// PointAward grants victory points to a participant.
type PointAward struct {
	ParticipantID string `json:"participant_id"`
	Amount        int    `json:"amount"`
	Reason        string `json:"reason"`
}

// Resolution is the judge's verdict for a round.
type Resolution struct {
	CrisisUpdate  string              `json:"crisis_update"`
	UpdatedStates []ParticipantUpdate `json:"updated_states"`
	PrivateIntel  []IntelReport       `json:"private_intel,omitempty"`
	PointAwards   []PointAward        `json:"point_awards,omitempty"`
}
