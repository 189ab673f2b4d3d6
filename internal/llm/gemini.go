package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/promopipe/go-offers-backend/internal/extract"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// Gemini calls the Google Generative Language REST API.
type Gemini struct {
	apiKey   string
	model    string
	endpoint string
	httpc    *http.Client
}

// GeminiConfig configures a Gemini provider. Endpoint and HTTPClient are
// optional; they exist so tests can point the provider at a stub server.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Endpoint   string
	HTTPClient *http.Client
}

// NewGemini builds a Gemini provider. A provider constructed without an API
// key or model is valid but answers ErrUnconfigured, which the chain skips.
func NewGemini(cfg GeminiConfig) *Gemini {
	g := &Gemini{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		httpc:    cfg.HTTPClient,
	}
	if g.endpoint == "" {
		g.endpoint = defaultGeminiEndpoint
	}
	if g.httpc == nil {
		g.httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return g
}

func (g *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) generate(ctx context.Context, parts []geminiPart) (string, error) {
	if g.apiKey == "" || g.model == "" {
		return "", ErrUnconfigured
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s",
		g.endpoint, url.PathEscape(g.model), url.QueryEscape(g.apiKey))

	body, err := json.Marshal(geminiRequest{Contents: []geminiContent{{Role: "user", Parts: parts}}})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini: unexpected status %d", resp.StatusCode)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini decode: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("gemini: empty candidates")
	}
	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

func (g *Gemini) ParseOffers(ctx context.Context, message string) ([]extract.Offer, error) {
	text, err := g.generate(ctx, []geminiPart{
		{Text: basePrompt},
		{Text: "\n\nMENSAGEM:\n" + message},
	})
	if err != nil {
		return nil, err
	}
	return decodeOffers(text)
}

func (g *Gemini) MatchProduct(ctx context.Context, officialName string, candidates []MatchCandidate) (MatchResult, error) {
	cands, err := json.Marshal(candidates)
	if err != nil {
		return MatchResult{}, err
	}
	text, err := g.generate(ctx, []geminiPart{
		{Text: matchPrompt},
		{Text: "\n\nNOME_OFICIAL:\n" + officialName},
		{Text: "\n\nCANDIDATOS:\n" + string(cands)},
	})
	if err != nil {
		return MatchResult{}, err
	}
	return decodeMatch(text)
}
