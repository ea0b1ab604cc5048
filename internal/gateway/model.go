// Package gateway turns a conversation into one request against the hosted
// model and normalizes whatever comes back.
package gateway

import "context"

// TurnRole is the role tag the remote model expects on each turn.
type TurnRole string

const (
	TurnUser  TurnRole = "user"
	TurnModel TurnRole = "model"
)

// Turn is one role-tagged message sent to the model.
type Turn struct {
	Role TurnRole
	Text string
}

// Citation is a grounding record as returned by the model, before filtering.
type Citation struct {
	Title string
	URI   string
}

// GenerateRequest is everything the model needs for one reply.
type GenerateRequest struct {
	Model             string
	SystemInstruction string
	Turns             []Turn
	SearchGrounding   bool
}

// GenerateResult is the raw reply. Text may be empty.
type GenerateResult struct {
	Text      string
	Citations []Citation
}

// ModelClient is the narrow port onto the remote model API.
type ModelClient interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}
