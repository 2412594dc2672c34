package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"undergame/internal/auth"
	"undergame/internal/config"
	"undergame/internal/dialogue"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocket initial payload format
type WSChatPrompt struct {
	ParticipantID string `json:"participant_id"`
	Message       string `json:"message"`
	ThreadID      string `json:"thread_id"`
	PlayerID      string `json:"player_id"`
	Fresh         bool   `json:"fresh"`
}

// WebSocket streaming token format
type WSChatToken struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket connection wrapper with mutex for thread-safe writes
type safeWSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWSConn) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *safeWSConn) ReadMessage() (int, []byte, error) {
	return s.conn.ReadMessage()
}

func (s *safeWSConn) Close() error {
	return s.conn.Close()
}

// WSChatHandler streams a persona's reply over a websocket, one token event
// per fragment. The client may send {"event":"stop"} mid-stream to cancel.
func (d *DialogueAPI) WSChatHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing JWT"})
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")
		claims, err := auth.ParseJWT(cfg.Server.JWTSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid JWT"})
			return
		}
		c.Set("userId", claims.UserID)

		rawConn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("WebSocket upgrade failed:", err)
			return
		}
		conn := &safeWSConn{conn: rawConn}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.WriteJSON(map[string]string{"error": "invalid initial payload"})
			return
		}
		var req WSChatPrompt
		if err := json.Unmarshal(msg, &req); err != nil {
			conn.WriteJSON(map[string]string{"error": "invalid JSON"})
			return
		}
		if req.Message == "" {
			conn.WriteJSON(map[string]string{"error": "message required"})
			return
		}

		p, ok := d.game.persona(c.Request.Context(), req.ParticipantID)
		if !ok {
			conn.WriteJSON(map[string]string{"error": "unknown participant: " + req.ParticipantID})
			return
		}

		threadID := req.ThreadID
		if threadID == "" {
			playerID := req.PlayerID
			if playerID == "" {
				playerID = "player"
			}
			threadID = dialogue.ThreadID(playerID, p.ID, req.Fresh)
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Listen for a stop event while the reply streams.
		go func() {
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					cancel()
					return
				}
				var evt map[string]interface{}
				if err := json.Unmarshal(raw, &evt); err == nil {
					if evt["event"] == "stop" {
						log.Printf("[WSChat] Stop event on thread %s", threadID)
						cancel()
						return
					}
				}
			}
		}()

		incoming := []dialogue.Message{{Role: dialogue.RoleUser, Content: req.Message}}
		fragments, err := d.session.StreamTurn(ctx, threadID, personaFor(p), incoming)
		if err != nil {
			conn.WriteJSON(map[string]string{"error": err.Error()})
			return
		}

		index := 0
		for frag := range fragments {
			if err := conn.WriteJSON(WSChatToken{Token: frag, Index: index}); err != nil {
				cancel()
				break
			}
			index++
		}

		conn.WriteJSON(map[string]interface{}{
			"event":     "end",
			"thread_id": threadID,
			"tokens":    index,
		})
	}
}
