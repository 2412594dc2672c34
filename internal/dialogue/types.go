package dialogue

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn in a dialogue transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Persona is the speaking character of a dialogue session. Usually derived
// from a game participant, but sessions work standalone too.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Perspective string `json:"perspective"`
	Style       string `json:"style"`
}

// NormalizeMessages coerces loosely typed incoming message payloads into a
// transcript. Accepted shapes: a single string, a list of strings (all
// treated as user turns), or a list of {role, content} objects. Entries with
// unknown roles or non-string content are dropped with a warning.
func NormalizeMessages(raw interface{}) []Message {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []Message{{Role: RoleUser, Content: v}}
	case []interface{}:
		var out []Message
		for _, item := range v {
			switch m := item.(type) {
			case string:
				if m != "" {
					out = append(out, Message{Role: RoleUser, Content: m})
				}
			case map[string]interface{}:
				role, _ := m["role"].(string)
				content, _ := m["content"].(string)
				if content == "" {
					continue
				}
				switch strings.ToLower(role) {
				case RoleUser, "human":
					out = append(out, Message{Role: RoleUser, Content: content})
				case RoleAssistant, "ai":
					out = append(out, Message{Role: RoleAssistant, Content: content})
				case RoleSystem:
					out = append(out, Message{Role: RoleSystem, Content: content})
				default:
					log.Printf("[Dialogue] Dropping message with unknown role %q", role)
				}
			default:
				log.Printf("[Dialogue] Dropping message of unsupported type %T", item)
			}
		}
		return out
	default:
		log.Printf("[Dialogue] Dropping payload of unsupported type %T", raw)
		return nil
	}
}

// ThreadID derives the deterministic conversation thread id for a pair of
// participants. Order-insensitive: (a,b) and (b,a) map to the same thread.
// With fresh=true a uuid suffix forces a brand-new thread instead.
func ThreadID(a, b string, fresh bool) string {
	ids := []string{strings.ToLower(a), strings.ToLower(b)}
	sort.Strings(ids)
	id := fmt.Sprintf("conv-%s-%s", ids[0], ids[1])
	if fresh {
		id += "-" + uuid.New().String()
	}
	return id
}

// Transcript renders messages as plain "Role: content" lines for
// summarization prompts.
func Transcript(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
