package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"undergame/internal/config"
	"undergame/internal/game"
)

// Delegate drives the round engine's generative calls: per-participant
// action decisions against the delegate model, round resolution against the
// judge model. Implements game.DelegateOracle.
type Delegate struct {
	client   *Client
	delegate config.OracleModelConfig
	judge    config.OracleModelConfig
}

func NewDelegate(client *Client, cfg config.OracleConfig) *Delegate {
	return &Delegate{
		client:   client,
		delegate: cfg.Delegate,
		judge:    cfg.Judge,
	}
}

// DecideAction asks the delegate model for one participant's round action.
func (d *Delegate) DecideAction(ctx context.Context, profile *game.Participant, dossier string, crisis string) (game.Action, error) {
	prompt := BuildDelegatePrompt(profile, dossier, crisis)
	reply, err := d.client.Complete(ctx, d.delegate, []ChatMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: "It is your turn. Submit your action now."},
	}, true)
	if err != nil {
		return game.Action{}, err
	}
	return parseActionReply(reply)
}

// ResolveRound asks the judge model to adjudicate the full action set.
func (d *Delegate) ResolveRound(ctx context.Context, actions []game.Action, secretPlot string) (game.Resolution, error) {
	prompt := BuildJudgePrompt(actions, secretPlot)
	reply, err := d.client.Complete(ctx, d.judge, []ChatMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: "Adjudicate the round now."},
	}, true)
	if err != nil {
		return game.Resolution{}, err
	}
	return parseResolutionReply(reply)
}

func parseActionReply(reply string) (game.Action, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return game.Action{}, &game.ValidationError{Field: "action", Reason: err.Error()}
	}

	var payload struct {
		ParticipantID string         `json:"participant_id"`
		Reasoning     string         `json:"reasoning"`
		Kind          string         `json:"kind"`
		Details       string         `json:"details"`
		ResourceCost  map[string]int `json:"resource_cost"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return game.Action{}, &game.ValidationError{Field: "action", Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if payload.Details == "" {
		return game.Action{}, &game.ValidationError{Field: "details", Reason: "empty action details"}
	}
	kind, err := game.ParseActionKind(payload.Kind)
	if err != nil {
		return game.Action{}, err
	}

	return game.Action{
		ParticipantID: payload.ParticipantID,
		Reasoning:     payload.Reasoning,
		Kind:          kind,
		Details:       payload.Details,
		ResourceCost:  payload.ResourceCost,
	}, nil
}

func parseResolutionReply(reply string) (game.Resolution, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return game.Resolution{}, &game.ValidationError{Field: "resolution", Reason: err.Error()}
	}

	var res game.Resolution
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return game.Resolution{}, &game.ValidationError{Field: "resolution", Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if res.CrisisUpdate == "" {
		return game.Resolution{}, &game.ValidationError{Field: "crisis_update", Reason: "resolution carries no crisis update"}
	}
	return res, nil
}
