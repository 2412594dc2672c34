package api

import (
	"net/http"

	"undergame/internal/dialogue"
	"undergame/internal/game"

	"github.com/gin-gonic/gin"
)

// DialogueAPI exposes persona conversations over HTTP. Personas come from the
// live game roster, so dialogue always reflects the current round.
type DialogueAPI struct {
	session *dialogue.Session
	game    *GameAPI
}

func NewDialogueAPI(session *dialogue.Session, gameAPI *GameAPI) *DialogueAPI {
	return &DialogueAPI{session: session, game: gameAPI}
}

type chatRequest struct {
	ParticipantID string      `json:"participant_id"`
	Message       string      `json:"message"`
	Messages      interface{} `json:"messages"`
	ThreadID      string      `json:"thread_id"`
	PlayerID      string      `json:"player_id"`
	Fresh         bool        `json:"fresh"`
}

func personaFor(p *game.Participant) dialogue.Persona {
	return dialogue.Persona{
		ID:          p.ID,
		Name:        p.Name,
		Perspective: p.Perspective,
		Style:       p.Style,
	}
}

// resolveChat validates a chat request and returns the persona, thread id and
// normalized incoming messages shared by the sync and streaming endpoints.
func (d *DialogueAPI) resolveChat(c *gin.Context, req *chatRequest) (dialogue.Persona, string, []dialogue.Message, bool) {
	p, ok := d.game.persona(c.Request.Context(), req.ParticipantID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "Unknown participant: " + req.ParticipantID}})
		return dialogue.Persona{}, "", nil, false
	}

	incoming := dialogue.NormalizeMessages(req.Messages)
	if len(incoming) == 0 && req.Message != "" {
		incoming = []dialogue.Message{{Role: dialogue.RoleUser, Content: req.Message}}
	}
	if len(incoming) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Message required"}})
		return dialogue.Persona{}, "", nil, false
	}

	threadID := req.ThreadID
	if threadID == "" {
		playerID := req.PlayerID
		if playerID == "" {
			playerID = "player"
		}
		threadID = dialogue.ThreadID(playerID, p.ID, req.Fresh)
	}
	return personaFor(p), threadID, incoming, true
}

// POST /chat
func (d *DialogueAPI) ChatHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		persona, threadID, incoming, ok := d.resolveChat(c, &req)
		if !ok {
			return
		}
		reply, err := d.session.Turn(c.Request.Context(), threadID, persona, incoming)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"message": err.Error()}})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"response":  reply,
			"thread_id": threadID,
		})
	}
}

// GET /chat/history/:thread_id
func (d *DialogueAPI) HistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("thread_id")
		rec, err := d.session.History(c.Request.Context(), threadID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to load history"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"thread_id": threadID,
			"messages":  rec.Messages,
			"summary":   rec.Summary,
		})
	}
}

type resetMemoryRequest struct {
	ThreadID string `json:"thread_id"`
}

// POST /reset-memory
// Clears one thread when a thread_id is given, otherwise all of them.
func (d *DialogueAPI) ResetMemoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetMemoryRequest
		_ = c.ShouldBindJSON(&req)

		var err error
		if req.ThreadID != "" {
			err = d.session.Reset(c.Request.Context(), req.ThreadID)
		} else {
			err = d.session.ResetAll(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to reset memory"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Memory reset"})
	}
}
