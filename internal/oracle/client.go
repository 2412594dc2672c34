package oracle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"undergame/internal/config"
)

// ChatMessage is one turn of an OpenAI-compatible chat payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to OpenAI-compatible completion endpoints (llama.cpp server,
// vLLM, etc). One client is shared by every caller; the circuit breaker and
// retry policy live here so callers stay oblivious.
type Client struct {
	http       *http.Client
	breaker    *CircuitBreaker
	maxRetries int
	timeout    time.Duration
}

// NewClient builds a client from the oracle section of the config.
func NewClient(cfg config.OracleConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Client{
		http:       &http.Client{Timeout: timeout},
		breaker:    NewCircuitBreaker(cfg.MaxRetries, time.Minute),
		maxRetries: cfg.MaxRetries,
		timeout:    timeout,
	}
}

// PostCompletion performs the raw HTTP exchange. Exported as a variable so
// tests can stub the network without an HTTP server.
var PostCompletion = func(c *Client, ctx context.Context, model config.OracleModelConfig, payload map[string]interface{}) (string, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", model.URL, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode > 299 {
		b, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("oracle backend returned status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}

	var respStruct struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&respStruct); err != nil {
		return "", fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if len(respStruct.Choices) == 0 {
		return "", errors.New("oracle response contained no choices")
	}
	return respStruct.Choices[0].Message.Content, nil
}

// Complete sends a chat completion request and returns the assistant reply.
// Transient failures are retried with jittered backoff; the circuit breaker
// short-circuits once the backend looks dead.
func (c *Client) Complete(ctx context.Context, model config.OracleModelConfig, messages []ChatMessage, forceJSON bool) (string, error) {
	payload := map[string]interface{}{
		"model":       model.Name,
		"messages":    messages,
		"temperature": 0.7,
		"stream":      false,
	}
	if forceJSON {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	var content string
	var lastErr error
	attempts := c.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.breaker.Call(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			out, err := PostCompletion(c, callCtx, model, payload)
			if err != nil {
				return err
			}
			content = out
			return nil
		})
		if err == nil {
			return content, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			backoff += time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
			log.Printf("[Oracle] Attempt %d/%d against %s failed: %v (retrying in %s)",
				attempt, attempts, model.Name, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("oracle call to %s failed after %d attempts: %w", model.Name, attempts, lastErr)
}

// CompleteStream sends a streaming chat completion request and emits content
// fragments on the returned channel. The channel closes when the stream
// finishes or ctx is cancelled; a non-nil terminal error is delivered on errc.
func (c *Client) CompleteStream(ctx context.Context, model config.OracleModelConfig, messages []ChatMessage) (<-chan string, <-chan error) {
	out := make(chan string, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		payload := map[string]interface{}{
			"model":       model.Name,
			"messages":    messages,
			"temperature": 0.7,
			"stream":      true,
		}
		body, _ := json.Marshal(payload)
		req, err := http.NewRequestWithContext(ctx, "POST", model.URL, bytes.NewBuffer(body))
		if err != nil {
			errc <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")

		// No client timeout here; streams run until done or cancelled.
		client := http.Client{Timeout: 0}
		res, err := client.Do(req)
		if err != nil {
			errc <- err
			return
		}
		defer res.Body.Close()

		if res.StatusCode > 299 {
			b, _ := io.ReadAll(res.Body)
			errc <- fmt.Errorf("oracle backend returned status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
			return
		}

		// Only [DONE] or a finish_reason counts as a complete reply. A
		// stream that dies any other way reports an error so callers never
		// mistake a truncated reply for a finished one.
		reader := bufio.NewReader(res.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				errc <- fmt.Errorf("stream ended before completion: %w", err)
				return
			}
			line = strings.TrimSpace(line)
			if len(line) < 7 || !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := line[6:]
			if data == "[DONE]" {
				return
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
					FinishReason string `json:"finish_reason"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				log.Printf("[Oracle] stream decode error: %v", err)
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if token := chunk.Choices[0].Delta.Content; token != "" {
				select {
				case out <- token:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if chunk.Choices[0].FinishReason != "" {
				return
			}
		}
	}()

	return out, errc
}

// ExtractJSON trims everything around the outermost JSON object in a model
// reply. Models wrap JSON in code fences or prose often enough that parsing
// the raw reply directly is a losing game.
func ExtractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", errors.New("no JSON object found in reply")
	}
	return s[start : end+1], nil
}
