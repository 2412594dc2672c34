package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"undergame/internal/config"
)

func testOracleConfig(url string) config.OracleConfig {
	m := config.OracleModelConfig{Name: "test-model", URL: url, ContextSize: 4096}
	return config.OracleConfig{
		Delegate:       m,
		Judge:          m,
		Dialogue:       m,
		Summarizer:     m,
		TimeoutSeconds: 5,
		MaxRetries:     3,
	}
}

func TestCompleteParsesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"a measured reply"}}]}`)
	}))
	defer srv.Close()

	cfg := testOracleConfig(srv.URL)
	c := NewClient(cfg)
	out, err := c.Complete(context.Background(), cfg.Dialogue, []ChatMessage{{Role: "user", Content: "hi"}}, false)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != "a measured reply" {
		t.Errorf("unexpected reply: %q", out)
	}
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "backend busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"recovered"}}]}`)
	}))
	defer srv.Close()

	cfg := testOracleConfig(srv.URL)
	c := NewClient(cfg)
	out, err := c.Complete(context.Background(), cfg.Dialogue, []ChatMessage{{Role: "user", Content: "hi"}}, false)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if out != "recovered" {
		t.Errorf("unexpected reply: %q", out)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "permanently broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testOracleConfig(srv.URL)
	c := NewClient(cfg)
	_, err := c.Complete(context.Background(), cfg.Dialogue, []ChatMessage{{Role: "user", Content: "hi"}}, false)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestCompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"The ", "fleet ", "sails."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	cfg := testOracleConfig(srv.URL)
	c := NewClient(cfg)
	out, errc := c.CompleteStream(context.Background(), cfg.Dialogue, []ChatMessage{{Role: "user", Content: "hi"}})

	var full strings.Builder
	for tok := range out {
		full.WriteString(tok)
	}
	if err := <-errc; err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if full.String() != "The fleet sails." {
		t.Errorf("unexpected streamed reply: %q", full.String())
	}
}

func TestCompleteStreamTruncationReportsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"wor\"}}]}\n\n")
		// Connection drops here: no [DONE], no finish_reason.
	}))
	defer srv.Close()

	cfg := testOracleConfig(srv.URL)
	c := NewClient(cfg)
	out, errc := c.CompleteStream(context.Background(), cfg.Dialogue, []ChatMessage{{Role: "user", Content: "hi"}})

	var full strings.Builder
	for tok := range out {
		full.WriteString(tok)
	}
	if full.String() != "Hello wor" {
		t.Errorf("unexpected fragments before the cut: %q", full.String())
	}
	if err := <-errc; err == nil {
		t.Fatal("truncated stream must surface an error, got nil")
	}
}

func TestCompleteStreamCancellationReportsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Hold the stream open until the client gives up.
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testOracleConfig(srv.URL)
	c := NewClient(cfg)
	out, errc := c.CompleteStream(ctx, cfg.Dialogue, []ChatMessage{{Role: "user", Content: "hi"}})

	if tok := <-out; tok != "Hello" {
		t.Fatalf("expected first fragment, got %q", tok)
	}
	cancel()
	for range out {
	}
	if err := <-errc; err == nil {
		t.Fatal("cancelled stream must surface an error, got nil")
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{`Here is my answer: {"a":{"b":2}} hope it helps`, `{"a":{"b":2}}`, true},
		{"no json here", "", false},
	}
	for _, tc := range cases {
		got, err := ExtractJSON(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ExtractJSON(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("ExtractJSON(%q) should have failed", tc.in)
		}
	}
}
