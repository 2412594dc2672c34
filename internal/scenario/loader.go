package scenario

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"undergame/internal/game"
)

// Manifest is the top-level scenario descriptor. File references are
// relative to the scenario directory.
type Manifest struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	UndergamePlot       string `json:"undergame_plot"`
	ParticipantDataFile string `json:"participant_data_file"`
	InitialStateFile    string `json:"initial_state_file"`
	RAGSourcesFile      string `json:"rag_sources_file"`
}

// RAGSource lists the background documents to ingest for one participant.
type RAGSource struct {
	ParticipantID string   `json:"participant_id"`
	URLs          []string `json:"urls"`
}

type initialState struct {
	RoundNumber  int    `json:"round_number"`
	CrisisUpdate string `json:"crisis_update"`
}

// Scenario is a fully loaded scenario pack.
type Scenario struct {
	Manifest     Manifest
	Participants []*game.Participant
	RAGSources   []RAGSource

	initial initialState
}

// Load reads a scenario pack directory: manifest.json plus the participant,
// initial-state and RAG-source files the manifest names.
func Load(dir string) (*Scenario, error) {
	var s Scenario
	if err := readJSON(filepath.Join(dir, "manifest.json"), &s.Manifest); err != nil {
		return nil, fmt.Errorf("failed to load scenario manifest: %w", err)
	}
	if s.Manifest.UndergamePlot == "" {
		return nil, fmt.Errorf("scenario %q has no undergame plot", s.Manifest.Name)
	}

	if err := readJSON(filepath.Join(dir, s.Manifest.ParticipantDataFile), &s.Participants); err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	if err := validateParticipants(s.Participants); err != nil {
		return nil, err
	}

	if err := readJSON(filepath.Join(dir, s.Manifest.InitialStateFile), &s.initial); err != nil {
		return nil, fmt.Errorf("failed to load initial state: %w", err)
	}

	// RAG sources are optional; a scenario can run ungrounded.
	if s.Manifest.RAGSourcesFile != "" {
		ragPath := filepath.Join(dir, s.Manifest.RAGSourcesFile)
		if err := readJSON(ragPath, &s.RAGSources); err != nil {
			if os.IsNotExist(err) {
				log.Printf("[Scenario] No RAG sources file at %s, continuing without grounding data", ragPath)
			} else {
				return nil, fmt.Errorf("failed to load RAG sources: %w", err)
			}
		}
	}

	log.Printf("[Scenario] Loaded %q: %d participants, round %d",
		s.Manifest.Name, len(s.Participants), s.initial.RoundNumber)
	return &s, nil
}

// UndergamePlot returns the secret plot driving the scenario.
func (s *Scenario) UndergamePlot() string {
	return s.Manifest.UndergamePlot
}

// InitialState builds a fresh world state for a new game of this scenario.
// Every call returns independent participant copies.
func (s *Scenario) InitialState() *game.WorldState {
	w := &game.WorldState{
		RoundNumber:  s.initial.RoundNumber,
		CrisisUpdate: s.initial.CrisisUpdate,
		Participants: make(map[string]*game.Participant, len(s.Participants)),
	}
	for _, p := range s.Participants {
		cp := p.Clone()
		if cp.Resources == nil {
			cp.Resources = map[string]int{}
		}
		if cp.Statuses == nil {
			cp.Statuses = map[string]string{}
		}
		w.Participants[strings.ToLower(cp.ID)] = cp
	}
	return w
}

// Participant resolves a participant definition by id, case-insensitively.
func (s *Scenario) Participant(id string) (*game.Participant, bool) {
	for _, p := range s.Participants {
		if strings.EqualFold(p.ID, id) {
			return p.Clone(), true
		}
	}
	return nil, false
}

// ParticipantIDs returns the ids in file order.
func (s *Scenario) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, strings.ToLower(p.ID))
	}
	return ids
}

func validateParticipants(participants []*game.Participant) error {
	if len(participants) == 0 {
		return fmt.Errorf("scenario defines no participants")
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("participant missing id or name: %+v", p)
		}
		key := strings.ToLower(p.ID)
		if seen[key] {
			return fmt.Errorf("duplicate participant id %q", p.ID)
		}
		seen[key] = true
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
