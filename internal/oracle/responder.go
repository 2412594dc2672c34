package oracle

import (
	"context"

	"undergame/internal/config"
	"undergame/internal/dialogue"
)

// Responder drives persona dialogue turns: replies against the dialogue
// model, summaries and context compression against the summarizer model.
// Implements dialogue.Responder.
type Responder struct {
	client     *Client
	dialogue   config.OracleModelConfig
	summarizer config.OracleModelConfig
}

func NewResponder(client *Client, cfg config.OracleConfig) *Responder {
	return &Responder{
		client:     client,
		dialogue:   cfg.Dialogue,
		summarizer: cfg.Summarizer,
	}
}

func dialogueMessages(p dialogue.Persona, history []dialogue.Message, background, summary string) []ChatMessage {
	system := BuildCharacterPrompt(p.Name, p.Perspective, p.Style, background, summary)
	msgs := make([]ChatMessage, 0, len(history)+1)
	msgs = append(msgs, ChatMessage{Role: "system", Content: system})
	for _, m := range history {
		if m.Role == dialogue.RoleSystem {
			continue
		}
		msgs = append(msgs, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}

func (r *Responder) Reply(ctx context.Context, p dialogue.Persona, history []dialogue.Message, background, summary string) (string, error) {
	return r.client.Complete(ctx, r.dialogue, dialogueMessages(p, history, background, summary), false)
}

func (r *Responder) StreamReply(ctx context.Context, p dialogue.Persona, history []dialogue.Message, background, summary string) (<-chan string, <-chan error) {
	return r.client.CompleteStream(ctx, r.dialogue, dialogueMessages(p, history, background, summary))
}

func (r *Responder) Summarize(ctx context.Context, name string, transcript []dialogue.Message, prior string) (string, error) {
	prompt := BuildSummaryPrompt(name, prior, dialogue.Transcript(transcript))
	return r.client.Complete(ctx, r.summarizer, []ChatMessage{
		{Role: "user", Content: prompt},
	}, false)
}

func (r *Responder) CompressContext(ctx context.Context, query, raw string) (string, error) {
	prompt := BuildContextCompressionPrompt(query, raw)
	return r.client.Complete(ctx, r.summarizer, []ChatMessage{
		{Role: "user", Content: prompt},
	}, false)
}
