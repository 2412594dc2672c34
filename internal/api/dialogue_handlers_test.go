package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"undergame/internal/config"
	"undergame/internal/dialogue"

	"github.com/gin-gonic/gin"
)

type scriptedResponder struct {
	replies int
	fail    bool
}

func (r *scriptedResponder) Reply(_ context.Context, p dialogue.Persona, _ []dialogue.Message, _, _ string) (string, error) {
	if r.fail {
		return "", fmt.Errorf("model offline")
	}
	r.replies++
	return fmt.Sprintf("%s speaks (%d)", p.Name, r.replies), nil
}

func (r *scriptedResponder) StreamReply(ctx context.Context, p dialogue.Persona, history []dialogue.Message, background, summary string) (<-chan string, <-chan error) {
	out := make(chan string, 1)
	errc := make(chan error, 1)
	reply, err := r.Reply(ctx, p, history, background, summary)
	if err == nil {
		out <- reply
	}
	errc <- err
	close(out)
	close(errc)
	return out, errc
}

func (r *scriptedResponder) Summarize(_ context.Context, _ string, _ []dialogue.Message, _ string) (string, error) {
	return "summary", nil
}

func (r *scriptedResponder) CompressContext(_ context.Context, _, raw string) (string, error) {
	return raw, nil
}

func newTestDialogueAPI(responder dialogue.Responder) (*DialogueAPI, *dialogue.Session) {
	gameAPI, _ := newTestGameAPI(&fakeOracle{})
	session := dialogue.NewSession(
		dialogue.NewMemoryCheckpointStore(),
		responder,
		nil,
		config.DialogueConfig{SummaryTrigger: 30, KeepAfterSummary: 5, ContextCompressLen: 4000},
	)
	return NewDialogueAPI(session, gameAPI), session
}

func dialogueRouter(d *DialogueAPI) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/chat", d.ChatHandler())
	r.GET("/chat/history/:thread_id", d.HistoryHandler())
	r.POST("/reset-memory", d.ResetMemoryHandler())
	return r
}

func TestChatHandler_ReturnsReplyAndThread(t *testing.T) {
	api, _ := newTestDialogueAPI(&scriptedResponder{})
	r := dialogueRouter(api)

	w := doJSON(t, r, "POST", "/chat", chatRequest{ParticipantID: "chen", Message: "what is your position?"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Response string `json:"response"`
		ThreadID string `json:"thread_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Response != "Minister Chen speaks (1)" {
		t.Errorf("unexpected reply %q", resp.Response)
	}
	if resp.ThreadID != "conv-chen-player" {
		t.Errorf("expected deterministic thread id, got %q", resp.ThreadID)
	}
}

func TestChatHandler_PersistsHistoryAcrossTurns(t *testing.T) {
	api, _ := newTestDialogueAPI(&scriptedResponder{})
	r := dialogueRouter(api)

	doJSON(t, r, "POST", "/chat", chatRequest{ParticipantID: "chen", Message: "first"})
	doJSON(t, r, "POST", "/chat", chatRequest{ParticipantID: "chen", Message: "second"})

	w := doJSON(t, r, "GET", "/chat/history/conv-chen-player", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Messages []dialogue.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Messages) != 4 {
		t.Fatalf("expected 4 messages after two turns, got %d", len(resp.Messages))
	}
	if resp.Messages[3].Content != "Minister Chen speaks (2)" {
		t.Errorf("unexpected final message %q", resp.Messages[3].Content)
	}
}

func TestChatHandler_MessagesPayload(t *testing.T) {
	api, _ := newTestDialogueAPI(&scriptedResponder{})
	r := dialogueRouter(api)

	w := doJSON(t, r, "POST", "/chat", map[string]interface{}{
		"participant_id": "volkov",
		"messages": []interface{}{
			map[string]interface{}{"role": "human", "content": "report"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestChatHandler_Errors(t *testing.T) {
	api, _ := newTestDialogueAPI(&scriptedResponder{})
	r := dialogueRouter(api)

	w := doJSON(t, r, "POST", "/chat", chatRequest{ParticipantID: "nobody", Message: "hi"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown participant, got %d", w.Code)
	}

	w = doJSON(t, r, "POST", "/chat", chatRequest{ParticipantID: "chen"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing message, got %d", w.Code)
	}
}

func TestChatHandler_ResponderFailure(t *testing.T) {
	api, _ := newTestDialogueAPI(&scriptedResponder{fail: true})
	r := dialogueRouter(api)

	w := doJSON(t, r, "POST", "/chat", chatRequest{ParticipantID: "chen", Message: "hi"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on responder failure, got %d", w.Code)
	}
}

func TestResetMemoryHandler(t *testing.T) {
	api, _ := newTestDialogueAPI(&scriptedResponder{})
	r := dialogueRouter(api)

	doJSON(t, r, "POST", "/chat", chatRequest{ParticipantID: "chen", Message: "remember this"})

	w := doJSON(t, r, "POST", "/reset-memory", resetMemoryRequest{ThreadID: "conv-chen-player"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, r, "GET", "/chat/history/conv-chen-player", nil)
	var resp struct {
		Messages []dialogue.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Messages) != 0 {
		t.Errorf("expected empty history after reset, got %d messages", len(resp.Messages))
	}
}
