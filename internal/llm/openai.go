package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/promopipe/go-offers-backend/internal/extract"
)

// OpenAI is the secondary provider, used when Gemini is unavailable or
// returns an unusable answer.
type OpenAI struct {
	client openai.Client
	model  string
	ready  bool
}

// OpenAIConfig configures an OpenAI provider. BaseURL is optional and exists
// so tests can point the provider at a stub server.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewOpenAI builds an OpenAI provider. Without an API key or model it stays
// unready and answers ErrUnconfigured, which the chain skips.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		ready:  cfg.APIKey != "" && cfg.Model != "",
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	if !o.ready {
		return "", ErrUnconfigured
	}
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) ParseOffers(ctx context.Context, message string) ([]extract.Offer, error) {
	text, err := o.complete(ctx, basePrompt+"\n\nMENSAGEM:\n"+message)
	if err != nil {
		return nil, err
	}
	return decodeOffers(text)
}

func (o *OpenAI) MatchProduct(ctx context.Context, officialName string, candidates []MatchCandidate) (MatchResult, error) {
	cands, err := json.Marshal(candidates)
	if err != nil {
		return MatchResult{}, err
	}
	text, err := o.complete(ctx, matchPrompt+"\n\nNOME_OFICIAL:\n"+officialName+"\n\nCANDIDATOS:\n"+string(cands))
	if err != nil {
		return MatchResult{}, err
	}
	return decodeMatch(text)
}
