package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"undergame/internal/archive"
	"undergame/internal/game"
	"undergame/internal/scenario"
	"undergame/internal/scoring"

	"github.com/gin-gonic/gin"
)

// GameAPI bundles the round engine with the loaded scenario and archive so
// the handlers share one set of dependencies.
type GameAPI struct {
	engine *game.RoundEngine
	scen   *scenario.Scenario
	store  *archive.Store // nil disables the rounds endpoint's DB view

	mu      sync.Mutex
	guesses map[string]string // participant id -> undergame guess
}

func NewGameAPI(engine *game.RoundEngine, scen *scenario.Scenario, store *archive.Store) *GameAPI {
	return &GameAPI{
		engine:  engine,
		scen:    scen,
		store:   store,
		guesses: make(map[string]string),
	}
}

// publicView is what everyone may know about a participant.
func publicView(p *game.Participant) gin.H {
	return gin.H{
		"id":             p.ID,
		"name":           p.Name,
		"perspective":    p.Perspective,
		"victory_points": p.VictoryPoints,
	}
}

// privateView adds the owner-only fields.
func privateView(p *game.Participant) gin.H {
	v := publicView(p)
	v["style"] = p.Style
	v["goals"] = p.Goals
	v["resources"] = p.Resources
	v["statuses"] = p.Statuses
	v["known_intel"] = p.KnownIntel
	return v
}

// GET /game/status/:participant_id
// One participant's view of the game: their full profile, everyone else's
// public face, and the shared crisis state. Private intel never crosses
// participant boundaries here.
func (g *GameAPI) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("participant_id")
		state := g.engine.GetCurrentState()
		self, ok := state.Lookup(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "Unknown participant: " + id}})
			return
		}

		others := make([]gin.H, 0, len(state.Participants)-1)
		for _, otherID := range state.Roster() {
			p := state.Participants[otherID]
			if strings.EqualFold(p.ID, self.ID) {
				continue
			}
			others = append(others, publicView(p))
		}

		c.JSON(http.StatusOK, gin.H{
			"round_number":  state.RoundNumber,
			"crisis_update": state.CrisisUpdate,
			"phase":         g.engine.Phase(),
			"you":           privateView(self),
			"others":        others,
			"is_game_over":  g.engine.IsGameOver(),
		})
	}
}

type submitActionRequest struct {
	ParticipantID string         `json:"participant_id"`
	Kind          string         `json:"kind"`
	Details       string         `json:"details"`
	Reasoning     string         `json:"reasoning"`
	ResourceCost  map[string]int `json:"resource_cost"`
}

// POST /game/action
// Records the human player's action for the round. Submission only; the
// round resolves when /game/advance is called.
func (g *GameAPI) SubmitActionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		if req.Details == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Action details required"}})
			return
		}
		kind, err := game.ParseActionKind(req.Kind)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		err = g.engine.SubmitPlayerAction(game.Action{
			ParticipantID: req.ParticipantID,
			Kind:          kind,
			Details:       req.Details,
			Reasoning:     req.Reasoning,
			ResourceCost:  req.ResourceCost,
		})
		switch {
		case err == nil:
			c.JSON(http.StatusAccepted, gin.H{
				"status":         "accepted",
				"participant_id": req.ParticipantID,
			})
		case errors.Is(err, game.ErrUnknownParticipant):
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": err.Error()}})
		case errors.Is(err, game.ErrDuplicateSubmission), errors.Is(err, game.ErrActionsLocked):
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"message": err.Error()}})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
		}
	}
}

// POST /game/advance
// Runs the full round resolution synchronously and returns the new state.
func (g *GameAPI) AdvanceRoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := g.engine.AdvanceRound(c.Request.Context())
		if err != nil {
			var oracleErr *game.OracleFailure
			switch {
			case errors.As(err, &oracleErr):
				c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"message": err.Error()}})
			case errors.Is(err, game.ErrActionsLocked):
				c.JSON(http.StatusConflict, gin.H{"error": gin.H{"message": "round advance already in progress"}})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error()}})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"state":        state,
			"is_game_over": g.engine.IsGameOver(),
		})
	}
}

// GET /game/state
func (g *GameAPI) StateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"state":        g.engine.GetCurrentState(),
			"phase":        g.engine.Phase(),
			"is_game_over": g.engine.IsGameOver(),
		})
	}
}

// GET /game/rounds
func (g *GameAPI) RoundsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.store == nil {
			c.JSON(http.StatusOK, gin.H{"rounds": []archive.RoundRecord{}})
			return
		}
		rounds, err := g.store.Rounds(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to load round archive"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rounds": rounds})
	}
}

type guessRequest struct {
	ParticipantID string `json:"participant_id"`
	Guess         string `json:"guess"`
}

// POST /game/guess
// Records a participant's guess at the hidden plot. Latest guess wins.
func (g *GameAPI) GuessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req guessRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Guess == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Participant id and guess required"}})
			return
		}
		state := g.engine.GetCurrentState()
		if _, ok := state.Lookup(req.ParticipantID); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "Unknown participant: " + req.ParticipantID}})
			return
		}
		g.mu.Lock()
		g.guesses[strings.ToLower(req.ParticipantID)] = req.Guess
		g.mu.Unlock()
		c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
	}
}

// GET /game/scores
// Final score breakdown. The hidden plot itself stays hidden; only the
// scores derived from it leave the server.
func (g *GameAPI) ScoresHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		g.mu.Lock()
		guesses := make(map[string]string, len(g.guesses))
		for k, v := range g.guesses {
			guesses[k] = v
		}
		g.mu.Unlock()

		state := g.engine.GetCurrentState()
		scores := scoring.CalculateFinalScores(state, guesses, g.scen.UndergamePlot())
		c.JSON(http.StatusOK, gin.H{
			"scores":       scores,
			"is_game_over": g.engine.IsGameOver(),
		})
	}
}

// persona resolves a dialogue persona from the live game state.
func (g *GameAPI) persona(_ context.Context, participantID string) (*game.Participant, bool) {
	state := g.engine.GetCurrentState()
	return state.Lookup(participantID)
}
