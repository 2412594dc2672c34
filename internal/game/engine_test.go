package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// stubOracle is a scripted DelegateOracle for engine tests.
type stubOracle struct {
	mu         sync.Mutex
	decideErr  map[string]error
	decideAs   map[string]string // return a different participant id
	resolveErr error
	resolution Resolution

	decided []string
	plots   []string
}

func (s *stubOracle) DecideAction(_ context.Context, profile *Participant, _ string, _ string) (Action, error) {
	s.mu.Lock()
	s.decided = append(s.decided, profile.ID)
	s.mu.Unlock()

	if err := s.decideErr[strings.ToLower(profile.ID)]; err != nil {
		return Action{}, err
	}
	id := profile.ID
	if as, ok := s.decideAs[strings.ToLower(profile.ID)]; ok {
		id = as
	}
	return Action{ParticipantID: id, Kind: KindDiplomacy, Details: "holds position"}, nil
}

func (s *stubOracle) ResolveRound(_ context.Context, _ []Action, plot string) (Resolution, error) {
	s.mu.Lock()
	s.plots = append(s.plots, plot)
	s.mu.Unlock()
	if s.resolveErr != nil {
		return Resolution{}, s.resolveErr
	}
	return s.resolution, nil
}

func testWorld() *WorldState {
	mk := func(id, name string) *Participant {
		return &Participant{
			ID:        id,
			Name:      name,
			Resources: map[string]int{"gold": 100, "troops": 50},
			Statuses:  map[string]string{"stance": "neutral"},
		}
	}
	return &WorldState{
		RoundNumber:  1,
		CrisisUpdate: "The summit convenes under heavy guard.",
		Participants: map[string]*Participant{
			"alia": mk("alia", "Chancellor Alia"),
			"bren": mk("bren", "General Bren"),
			"cato": mk("cato", "Spymaster Cato"),
			"dara": mk("dara", "Magnate Dara"),
		},
	}
}

func TestAdvanceRoundFullCycle(t *testing.T) {
	oracle := &stubOracle{
		resolution: Resolution{
			CrisisUpdate: "Borders close overnight.",
			UpdatedStates: []ParticipantUpdate{
				{ParticipantID: "bren", Resources: map[string]int{"gold": 80, "troops": 60}, Statuses: map[string]string{"stance": "mobilized"}},
			},
			PrivateIntel: []IntelReport{{RecipientID: "cato", Report: "Bren moves at dawn."}},
			PointAwards:  []PointAward{{ParticipantID: "dara", Amount: 2, Reason: "cornered the grain market"}},
		},
	}
	e := NewRoundEngine(testWorld(), "the harbor fleet is already sold", oracle)

	if err := e.SubmitPlayerAction(Action{ParticipantID: "Alia", Kind: KindDiplomacy, Details: "proposes a ceasefire"}); err != nil {
		t.Fatalf("player submit failed: %v", err)
	}

	next, err := e.AdvanceRound(context.Background())
	if err != nil {
		t.Fatalf("AdvanceRound failed: %v", err)
	}

	if next.RoundNumber != 2 {
		t.Errorf("expected round 2, got %d", next.RoundNumber)
	}
	if next.CrisisUpdate != "Borders close overnight." {
		t.Errorf("crisis update not applied: %q", next.CrisisUpdate)
	}
	if len(oracle.decided) != 3 {
		t.Errorf("expected 3 delegate decisions, got %d (%v)", len(oracle.decided), oracle.decided)
	}
	for _, id := range oracle.decided {
		if strings.EqualFold(id, "alia") {
			t.Error("oracle decided for the human participant")
		}
	}
	if len(oracle.plots) != 1 || oracle.plots[0] != "the harbor fleet is already sold" {
		t.Errorf("secret plot not passed to resolution: %v", oracle.plots)
	}

	// Wholesale replacement for the updated participant.
	bren, _ := next.Lookup("bren")
	if bren.Resources["gold"] != 80 || bren.Resources["troops"] != 60 {
		t.Errorf("bren resources not replaced: %v", bren.Resources)
	}
	if bren.Statuses["stance"] != "mobilized" {
		t.Errorf("bren statuses not replaced: %v", bren.Statuses)
	}

	// Participants absent from the verdict keep their prior maps.
	alia, _ := next.Lookup("alia")
	if alia.Resources["gold"] != 100 || alia.Statuses["stance"] != "neutral" {
		t.Errorf("alia state changed despite no update: %v %v", alia.Resources, alia.Statuses)
	}

	// Intel lands on exactly one recipient.
	cato, _ := next.Lookup("cato")
	if len(cato.KnownIntel) != 1 || cato.KnownIntel[0] != "Bren moves at dawn." {
		t.Errorf("intel not delivered to cato: %v", cato.KnownIntel)
	}
	if len(alia.KnownIntel) != 0 || len(bren.KnownIntel) != 0 {
		t.Error("intel leaked to non-recipients")
	}

	dara, _ := next.Lookup("dara")
	if dara.VictoryPoints != 2 {
		t.Errorf("expected 2 victory points for dara, got %d", dara.VictoryPoints)
	}

	if len(next.LastRoundActions) != 4 {
		t.Errorf("expected 4 recorded actions, got %d", len(next.LastRoundActions))
	}
	if e.Phase() != PhaseAwaitingActions {
		t.Errorf("expected awaiting_actions phase, got %s", e.Phase())
	}
	if e.GetCurrentState().RoundNumber != 2 {
		t.Error("live state did not advance")
	}

	// The ledger is fresh for the next round.
	if err := e.SubmitPlayerAction(Action{ParticipantID: "alia", Kind: KindEconomic}); err != nil {
		t.Errorf("submit in new round failed: %v", err)
	}
}

func TestAdvanceRoundCorrectsHallucinatedID(t *testing.T) {
	oracle := &stubOracle{
		decideAs: map[string]string{"bren": "Napoleon Bonaparte"},
	}
	e := NewRoundEngine(testWorld(), "plot", oracle)
	if err := e.SubmitPlayerAction(Action{ParticipantID: "alia", Kind: KindDiplomacy}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	next, err := e.AdvanceRound(context.Background())
	if err != nil {
		t.Fatalf("AdvanceRound failed: %v", err)
	}
	for _, a := range next.LastRoundActions {
		if _, ok := next.Lookup(a.ParticipantID); !ok {
			t.Errorf("action carries unknown participant id %q", a.ParticipantID)
		}
	}
}

func TestAdvanceRoundDecideFailureAborts(t *testing.T) {
	boom := errors.New("model unavailable")
	oracle := &stubOracle{decideErr: map[string]error{"cato": boom}}
	e := NewRoundEngine(testWorld(), "plot", oracle)
	if err := e.SubmitPlayerAction(Action{ParticipantID: "alia", Kind: KindDiplomacy}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	_, err := e.AdvanceRound(context.Background())
	if err == nil {
		t.Fatal("expected decide-stage failure to abort the advance")
	}
	var of *OracleFailure
	if !errors.As(err, &of) {
		t.Fatalf("expected OracleFailure, got %T: %v", err, err)
	}
	if of.Stage != "decide" || !strings.EqualFold(of.ParticipantID, "cato") {
		t.Errorf("wrong failure context: %+v", of)
	}
	if !errors.Is(err, boom) {
		t.Error("underlying error not wrapped")
	}
	if len(oracle.plots) != 0 {
		t.Error("resolution ran despite decide failure")
	}

	// World untouched, round not advanced, human submission retained.
	st := e.GetCurrentState()
	if st.RoundNumber != 1 {
		t.Errorf("round advanced on failure: %d", st.RoundNumber)
	}
	if err := e.SubmitPlayerAction(Action{ParticipantID: "alia", Kind: KindMilitary}); !errors.Is(err, ErrDuplicateSubmission) {
		t.Errorf("expected human submission to survive the failed advance, got %v", err)
	}
}

func TestAdvanceRoundResolveFailureAborts(t *testing.T) {
	oracle := &stubOracle{resolveErr: errors.New("judge offline")}
	e := NewRoundEngine(testWorld(), "plot", oracle)

	_, err := e.AdvanceRound(context.Background())
	var of *OracleFailure
	if !errors.As(err, &of) || of.Stage != "resolve" {
		t.Fatalf("expected resolve-stage OracleFailure, got %v", err)
	}
	if e.GetCurrentState().RoundNumber != 1 {
		t.Error("round advanced despite resolve failure")
	}
}

func TestSubmitRejectionsAndPhaseGuard(t *testing.T) {
	e := NewRoundEngine(testWorld(), "plot", &stubOracle{})

	if err := e.SubmitPlayerAction(Action{ParticipantID: "zed"}); !errors.Is(err, ErrUnknownParticipant) {
		t.Errorf("expected ErrUnknownParticipant, got %v", err)
	}
	if err := e.SubmitPlayerAction(Action{ParticipantID: "alia", Kind: KindDiplomacy}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := e.SubmitPlayerAction(Action{ParticipantID: "ALIA", Kind: KindMilitary}); !errors.Is(err, ErrDuplicateSubmission) {
		t.Errorf("expected ErrDuplicateSubmission, got %v", err)
	}

	e.mu.Lock()
	e.phase = PhaseResolving
	e.mu.Unlock()
	if err := e.SubmitPlayerAction(Action{ParticipantID: "bren", Kind: KindDiplomacy}); !errors.Is(err, ErrActionsLocked) {
		t.Errorf("expected ErrActionsLocked while resolving, got %v", err)
	}
}

func TestGameOverPredicate(t *testing.T) {
	e := NewRoundEngine(testWorld(), "plot", &stubOracle{})
	if e.IsGameOver() {
		t.Error("game over with no predicate attached")
	}
	e.SetGameOverFunc(func(w *WorldState) bool { return w.RoundNumber >= 1 })
	if !e.IsGameOver() {
		t.Error("predicate not consulted")
	}
}

func TestGetCurrentStateIsACopy(t *testing.T) {
	e := NewRoundEngine(testWorld(), "plot", &stubOracle{})
	snap := e.GetCurrentState()
	snap.Participants["alia"].Resources["gold"] = 0
	snap.CrisisUpdate = "tampered"

	live := e.GetCurrentState()
	if live.Participants["alia"].Resources["gold"] != 100 || live.CrisisUpdate == "tampered" {
		t.Error("mutating a snapshot leaked into the live state")
	}
}
