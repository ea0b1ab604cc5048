package gateway

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// GeminiClient is a ModelClient backed by the Gemini API.
// The underlying SDK client is created on first use, so a missing API key
// shows up as a failed call rather than a startup error.
type GeminiClient struct {
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

var _ ModelClient = (*GeminiClient)(nil)

// NewGeminiClient returns a client that authenticates with apiKey.
func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey}
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.apiKey == "" {
		return nil, errors.New("gemini API key is not configured")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	g.client = c
	return c, nil
}

// Generate issues one GenerateContent call.
func (g *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	c, err := g.sdk(ctx)
	if err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, t := range req.Turns {
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(t.Role)))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.SearchGrounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := c.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "generate content with %s", req.Model)
	}
	return resultFromResponse(resp), nil
}

func resultFromResponse(resp *genai.GenerateContentResponse) *GenerateResult {
	if resp == nil {
		return &GenerateResult{}
	}
	res := &GenerateResult{Text: resp.Text()}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].GroundingMetadata == nil {
		return res
	}
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			// kept so the gateway's link filter decides what is shown
			res.Citations = append(res.Citations, Citation{})
			continue
		}
		res.Citations = append(res.Citations, Citation{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return res
}
