package game

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Phase is the round state machine position.
type Phase string

const (
	PhaseAwaitingActions Phase = "awaiting_actions"
	PhaseResolving       Phase = "resolving"
)

// DelegateOracle is the generative backend the engine drives: one call per
// AI delegate to decide an action, and one call per round to resolve it.
type DelegateOracle interface {
	DecideAction(ctx context.Context, profile *Participant, dossier string, crisis string) (Action, error)
	ResolveRound(ctx context.Context, actions []Action, secretPlot string) (Resolution, error)
}

// Archiver persists completed rounds for audit/display. Optional.
type Archiver interface {
	SaveRound(ctx context.Context, round int, crisis string, actions []Action, awards []PointAward) error
}

// GameOverFunc is an externally supplied end-of-game predicate.
type GameOverFunc func(*WorldState) bool

// RoundEngine owns the single live WorldState of a running game and drives
// the round state machine: collect actions, fan out AI decisions, resolve,
// merge, advance. One engine instance is exclusive to one game.
type RoundEngine struct {
	mu     sync.Mutex
	state  *WorldState
	plot   string // the undergame; never exposed to participants
	ledger *ActionLedger
	oracle DelegateOracle
	phase  Phase

	archive Archiver     // optional
	isOver  GameOverFunc // optional, defaults to never-over
}

// NewRoundEngine creates an engine around an initial world state and the
// secret undergame plot.
func NewRoundEngine(initial *WorldState, plot string, oracle DelegateOracle) *RoundEngine {
	return &RoundEngine{
		state:  initial,
		plot:   plot,
		ledger: NewActionLedger(initial.Roster()),
		oracle: oracle,
		phase:  PhaseAwaitingActions,
	}
}

// SetArchiver attaches a round audit sink.
func (e *RoundEngine) SetArchiver(a Archiver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.archive = a
}

// SetGameOverFunc attaches the externally supplied game-over predicate.
func (e *RoundEngine) SetGameOverFunc(f GameOverFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isOver = f
}

// Phase returns the current state machine position.
func (e *RoundEngine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// GetCurrentState returns an independent copy of the live world state.
func (e *RoundEngine) GetCurrentState() *WorldState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// IsGameOver evaluates the injected predicate against the live state.
func (e *RoundEngine) IsGameOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isOver == nil {
		return false
	}
	return e.isOver(e.state)
}

// SubmitPlayerAction records the human player's action for this round.
// Lookup and duplicate errors surface immediately to the caller. While a
// round advance is in flight, submissions are rejected rather than queued.
func (e *RoundEngine) SubmitPlayerAction(a Action) error {
	e.mu.Lock()
	if e.phase != PhaseAwaitingActions {
		e.mu.Unlock()
		return ErrActionsLocked
	}
	p, known := e.state.Lookup(a.ParticipantID)
	e.mu.Unlock()

	if err := e.ledger.Submit(a); err != nil {
		return err
	}
	if known {
		log.Printf("[RoundEngine] Action received from %s (%s)", p.Name, a.Kind)
	}
	return nil
}

// AdvanceRound executes the full round advance: concurrent AI delegate
// decisions for every participant without a ledger entry, a single
// resolution call strictly after the join barrier, and the world-state
// merge. On any oracle failure the advance aborts; the world state and the
// human submissions already in the ledger are left untouched.
func (e *RoundEngine) AdvanceRound(ctx context.Context) (*WorldState, error) {
	e.mu.Lock()
	if e.phase == PhaseResolving {
		e.mu.Unlock()
		return nil, ErrActionsLocked
	}
	e.phase = PhaseResolving
	round := e.state.RoundNumber
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.phase = PhaseAwaitingActions
		e.mu.Unlock()
	}()

	log.Printf("[RoundEngine] Processing round %d", round)

	decided, err := e.runDelegateFanOut(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range decided {
		if err := e.ledger.Submit(a); err != nil {
			// Distinct keys per fan-out task; reaching this means the
			// roster changed underneath us.
			return nil, err
		}
	}

	actions, err := e.ledger.All()
	if err != nil {
		return nil, err
	}

	resolution, err := e.oracle.ResolveRound(ctx, actions, e.plot)
	if err != nil {
		return nil, &OracleFailure{Stage: "resolve", Err: err}
	}

	e.mu.Lock()
	e.applyResolution(resolution)
	e.state.RoundNumber++
	e.state.LastRoundActions = actions
	e.ledger.Clear()
	next := e.state.Clone()
	e.mu.Unlock()

	if e.archive != nil {
		if err := e.archive.SaveRound(ctx, next.RoundNumber-1, next.CrisisUpdate, actions, resolution.PointAwards); err != nil {
			log.Printf("[RoundEngine] WARNING: failed to archive round %d: %v", next.RoundNumber-1, err)
		}
	}

	log.Printf("[RoundEngine] Round %d has begun", next.RoundNumber)
	return next, nil
}

// runDelegateFanOut invokes the action oracle for every missing participant
// concurrently and joins on all of them. Each task writes a distinct slot,
// so no lock is needed across tasks. Partial failures abort the advance.
func (e *RoundEngine) runDelegateFanOut(ctx context.Context) ([]Action, error) {
	missing := e.ledger.Missing()
	if len(missing) == 0 {
		return nil, nil
	}

	actions := make([]Action, len(missing))
	errs := make([]error, len(missing))
	var wg sync.WaitGroup

	for i, id := range missing {
		profile, ok := e.state.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParticipant, id)
		}
		wg.Add(1)
		go func(i int, profile *Participant) {
			defer wg.Done()
			a, err := e.oracle.DecideAction(ctx, profile.Clone(), e.dossierFor(profile.ID), e.state.CrisisUpdate)
			if err != nil {
				errs[i] = &OracleFailure{Stage: "decide", ParticipantID: profile.ID, Err: err}
				return
			}
			// Hallucination correction: the oracle sometimes returns an id
			// other than the participant it was asked to play.
			if !strings.EqualFold(a.ParticipantID, profile.ID) {
				log.Printf("[RoundEngine] WARNING: oracle returned participant id %q, expected %q; overwriting",
					a.ParticipantID, profile.ID)
				a.ParticipantID = profile.ID
			}
			actions[i] = a
		}(i, profile)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return actions, nil
}

// dossierFor summarizes every other participant for a delegate's decision
// call. Only public-facing profile text goes in; no resources, no intel.
func (e *RoundEngine) dossierFor(id string) string {
	var b strings.Builder
	for _, otherID := range e.state.Roster() {
		other := e.state.Participants[otherID]
		if strings.EqualFold(other.ID, id) {
			continue
		}
		b.WriteString("- **")
		b.WriteString(other.Name)
		b.WriteString("**\n  Reputation: ")
		b.WriteString(other.Perspective)
		b.WriteString("\n")
	}
	return b.String()
}

// applyResolution merges the judge's verdict into the world state.
// Updated participants get their resource/status maps replaced wholesale;
// participants absent from the output keep their prior maps. Intel appends
// to exactly the recipient; point awards accumulate.
func (e *RoundEngine) applyResolution(r Resolution) {
	e.state.CrisisUpdate = r.CrisisUpdate

	for _, u := range r.UpdatedStates {
		p, ok := e.state.Lookup(u.ParticipantID)
		if !ok {
			log.Printf("[RoundEngine] WARNING: resolution updated unknown participant %q; skipping", u.ParticipantID)
			continue
		}
		if u.Resources != nil {
			p.Resources = u.Resources
		}
		if u.Statuses != nil {
			p.Statuses = u.Statuses
		}
	}

	for _, intel := range r.PrivateIntel {
		p, ok := e.state.Lookup(intel.RecipientID)
		if !ok {
			log.Printf("[RoundEngine] WARNING: intel addressed to unknown participant %q; dropping", intel.RecipientID)
			continue
		}
		p.KnownIntel = append(p.KnownIntel, intel.Report)
	}

	for _, award := range r.PointAwards {
		p, ok := e.state.Lookup(award.ParticipantID)
		if !ok {
			log.Printf("[RoundEngine] WARNING: point award for unknown participant %q; dropping", award.ParticipantID)
			continue
		}
		p.VictoryPoints += award.Amount
	}
}
