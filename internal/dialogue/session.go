package dialogue

import (
	"context"
	"log"
	"strings"
	"sync"

	"undergame/internal/config"
)

// Responder is the generative backend for dialogue turns.
type Responder interface {
	Reply(ctx context.Context, p Persona, history []Message, background, summary string) (string, error)
	StreamReply(ctx context.Context, p Persona, history []Message, background, summary string) (<-chan string, <-chan error)
	Summarize(ctx context.Context, name string, transcript []Message, prior string) (string, error)
	CompressContext(ctx context.Context, query, raw string) (string, error)
}

// Retriever supplies grounding passages for a dialogue turn, scoped to the
// speaking persona's knowledge base. Optional.
type Retriever interface {
	Retrieve(ctx context.Context, participantID, query string, limit int) ([]string, error)
}

// Session runs persona conversations over persisted threads: load history,
// ground the turn, generate a reply, persist, and fold old turns into a
// running summary once the transcript grows past the trigger.
type Session struct {
	store     CheckpointStore
	responder Responder
	retriever Retriever // nil disables grounding
	cfg       config.DialogueConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-thread; turns on one thread serialize
}

func NewSession(store CheckpointStore, responder Responder, retriever Retriever, cfg config.DialogueConfig) *Session {
	return &Session{
		store:     store,
		responder: responder,
		retriever: retriever,
		cfg:       cfg,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Session) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[threadID] = l
	}
	return l
}

// Turn runs one complete dialogue exchange and returns the persona's reply.
func (s *Session) Turn(ctx context.Context, threadID string, p Persona, incoming []Message) (string, error) {
	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.store.Load(ctx, threadID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		rec = &Record{}
	}
	rec.Messages = append(rec.Messages, incoming...)

	background := s.ground(ctx, p.ID, lastUserContent(rec.Messages))

	reply, err := s.responder.Reply(ctx, p, rec.Messages, background, rec.Summary)
	if err != nil {
		return "", err
	}
	rec.Messages = append(rec.Messages, Message{Role: RoleAssistant, Content: reply})

	s.maybeSummarize(ctx, p, rec)

	if err := s.store.Save(ctx, threadID, rec); err != nil {
		return "", err
	}
	return reply, nil
}

// StreamTurn is Turn with the reply delivered as a fragment stream. Only
// reply-stage fragments reach the channel; grounding and summarization run
// silently. The record is persisted after the full reply has streamed, so a
// dropped stream never leaves a half-written assistant turn behind.
func (s *Session) StreamTurn(ctx context.Context, threadID string, p Persona, incoming []Message) (<-chan string, error) {
	lock := s.threadLock(threadID)
	lock.Lock()

	rec, err := s.store.Load(ctx, threadID)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	if rec == nil {
		rec = &Record{}
	}
	rec.Messages = append(rec.Messages, incoming...)

	background := s.ground(ctx, p.ID, lastUserContent(rec.Messages))

	fragments, errc := s.responder.StreamReply(ctx, p, rec.Messages, background, rec.Summary)
	out := make(chan string, 16)

	go func() {
		defer lock.Unlock()
		defer close(out)

		var full strings.Builder
		for frag := range fragments {
			full.WriteString(frag)
			select {
			case out <- frag:
			case <-ctx.Done():
			}
		}
		if err := <-errc; err != nil {
			log.Printf("[Dialogue] Stream on thread %s failed: %v", threadID, err)
			return
		}
		if full.Len() == 0 {
			return
		}

		rec.Messages = append(rec.Messages, Message{Role: RoleAssistant, Content: full.String()})

		// ctx belongs to the client connection; persistence must outlive it.
		bg := context.Background()
		s.maybeSummarize(bg, p, rec)
		if err := s.store.Save(bg, threadID, rec); err != nil {
			log.Printf("[Dialogue] Failed to persist thread %s: %v", threadID, err)
		}
	}()

	return out, nil
}

// ground fetches and, when oversized, compresses retrieval context for the
// query. Grounding is best-effort: failures degrade to an ungrounded turn.
func (s *Session) ground(ctx context.Context, participantID, query string) string {
	if s.retriever == nil || query == "" {
		return ""
	}
	passages, err := s.retriever.Retrieve(ctx, participantID, query, 0)
	if err != nil {
		log.Printf("[Dialogue] Retrieval failed, continuing ungrounded: %v", err)
		return ""
	}
	if len(passages) == 0 {
		return ""
	}
	raw := strings.Join(passages, "\n\n")
	if len(raw) <= s.cfg.ContextCompressLen {
		return raw
	}
	compressed, err := s.responder.CompressContext(ctx, query, raw)
	if err != nil {
		log.Printf("[Dialogue] Context compression failed, using raw context: %v", err)
		return raw
	}
	return compressed
}

// maybeSummarize folds the transcript into the running summary once it
// exceeds the trigger, keeping only the most recent turns verbatim.
func (s *Session) maybeSummarize(ctx context.Context, p Persona, rec *Record) {
	if len(rec.Messages) <= s.cfg.SummaryTrigger {
		return
	}
	summary, err := s.responder.Summarize(ctx, p.Name, rec.Messages, rec.Summary)
	if err != nil {
		log.Printf("[Dialogue] Summarization failed, keeping full transcript: %v", err)
		return
	}
	keep := s.cfg.KeepAfterSummary
	if keep < 0 {
		keep = 0
	}
	if keep < len(rec.Messages) {
		rec.Messages = append([]Message(nil), rec.Messages[len(rec.Messages)-keep:]...)
	}
	rec.Summary = summary
	log.Printf("[Dialogue] Compacted thread for %s to %d messages plus summary", p.Name, len(rec.Messages))
}

// Reset wipes one thread's history and releases its lock entry, so
// short-lived fresh threads do not accumulate mutexes for the life of
// the process.
func (s *Session) Reset(ctx context.Context, threadID string) error {
	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	err := s.store.Clear(ctx, threadID)

	s.mu.Lock()
	delete(s.locks, threadID)
	s.mu.Unlock()
	return err
}

// ResetAll wipes every thread.
func (s *Session) ResetAll(ctx context.Context) error {
	err := s.store.ClearAll(ctx)

	s.mu.Lock()
	s.locks = make(map[string]*sync.Mutex)
	s.mu.Unlock()
	return err
}

// History returns the persisted record for a thread, or an empty record.
func (s *Session) History(ctx context.Context, threadID string) (*Record, error) {
	rec, err := s.store.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &Record{}
	}
	return rec, nil
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
