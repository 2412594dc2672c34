package oracle

import (
	"fmt"
	"sort"
	"strings"

	"undergame/internal/game"
)

const delegatePromptTmpl = `You are playing %s in a high-stakes geopolitical crisis simulation.

Your perspective: %s
Your negotiation style: %s
Your goals: %s

Your current resources: %s
Your current standing: %s
Private intelligence you hold:
%s

The other players at the table:
%s

Latest crisis development:
%s

Decide your single action for this round. Respond with a JSON object only, no other text:
{"participant_id": "%s", "reasoning": "<your private reasoning>", "kind": "<DIPLOMACY|MILITARY|ESPIONAGE|ECONOMIC>", "details": "<what you concretely do>", "resource_cost": {"<resource>": <amount>}}`

const judgePromptTmpl = `You are the impartial arbiter of a geopolitical crisis simulation. You alone know the hidden truth driving events:

%s

The hidden truth shapes outcomes but must NEVER be revealed or quoted in any output field.

This round's submitted actions:
%s

Adjudicate the round. Respond with a JSON object only, no other text:
{"crisis_update": "<public narration of what happened>", "updated_states": [{"participant_id": "...", "resources": {...}, "statuses": {...}}], "private_intel": [{"recipient_id": "...", "report": "..."}], "point_awards": [{"participant_id": "...", "amount": 0, "reason": "..."}]}

Rules:
- updated_states entries replace that participant's resources and statuses wholesale; include the full maps.
- Omit participants whose state did not change.
- private_intel rewards ESPIONAGE actions with information only the recipient learns.
- point_awards go to participants whose action meaningfully advanced their goals.`

// BuildDelegatePrompt renders the decision prompt for one AI delegate.
func BuildDelegatePrompt(p *game.Participant, dossier, crisis string) string {
	intel := "(none)"
	if len(p.KnownIntel) > 0 {
		intel = "- " + strings.Join(p.KnownIntel, "\n- ")
	}
	return fmt.Sprintf(delegatePromptTmpl,
		p.Name, p.Perspective, p.Style, p.Goals,
		formatIntMap(p.Resources), formatStringMap(p.Statuses),
		intel, dossier, crisis, p.ID)
}

// BuildJudgePrompt renders the resolution prompt from the full action set
// and the secret plot.
func BuildJudgePrompt(actions []game.Action, secretPlot string) string {
	var b strings.Builder
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s [%s]: %s", a.ParticipantID, a.Kind, a.Details)
		if len(a.ResourceCost) > 0 {
			fmt.Fprintf(&b, " (spending %s)", formatIntMap(a.ResourceCost))
		}
		b.WriteString("\n")
	}
	return fmt.Sprintf(judgePromptTmpl, secretPlot, b.String())
}

const characterPromptTmpl = `You are %s, a figure in an ongoing geopolitical crisis, having a private conversation.

Your perspective: %s
Your conversation style: %s

You must always stay in character. Never mention being an AI or a simulation. Keep replies under 100 words, conversational and in your own voice.
%s%s`

// BuildCharacterPrompt renders the system prompt for a dialogue turn.
// Retrieved background and the running summary slot in when present.
func BuildCharacterPrompt(name, perspective, style, background, summary string) string {
	bg := ""
	if background != "" {
		bg = "\nRelevant background you may draw on:\n" + background + "\n"
	}
	sum := ""
	if summary != "" {
		sum = "\nSummary of the conversation so far:\n" + summary + "\n"
	}
	return fmt.Sprintf(characterPromptTmpl, name, perspective, style, bg, sum)
}

// BuildSummaryPrompt asks for a fresh or extended running summary.
func BuildSummaryPrompt(name, prior, transcript string) string {
	if prior == "" {
		return fmt.Sprintf("Create a summary of the conversation between %s and the user.\nThe summary must be a short description of the conversation so far, but that also captures all the relevant information shared:\n\n%s", name, transcript)
	}
	return fmt.Sprintf("This is a summary of the conversation so far between %s and the user:\n\n%s\n\nExtend the summary by taking into account the new messages:\n\n%s", name, prior, transcript)
}

// BuildContextCompressionPrompt shrinks retrieved source text to what
// matters for the current query.
func BuildContextCompressionPrompt(query, raw string) string {
	return fmt.Sprintf("Your task is to summarize the following information into a shorter paragraph, keeping only what is relevant to the question.\n\nQuestion: %s\n\nInformation:\n%s", query, raw)
}

func sortedKeysInt(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysString(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatIntMap(m map[string]int) string {
	if len(m) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeysInt(m) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

func formatStringMap(m map[string]string) string {
	if len(m) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeysString(m) {
		parts = append(parts, fmt.Sprintf("%s=%s", k, m[k]))
	}
	return strings.Join(parts, ", ")
}
