// Package llm provides the semantic extraction collaborator: an ordered
// chain of model providers that parse promotional messages the deterministic
// extractor could not handle with confidence, and that resolve fuzzy product
// matches. Providers are best-effort; a provider that is unconfigured or
// fails is skipped and the next one is tried.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/promopipe/go-offers-backend/internal/extract"
)

// ErrUnconfigured is returned by providers missing an API key or model name.
// The chain treats it as a silent skip.
var ErrUnconfigured = errors.New("llm: provider not configured")

// ErrNoResult is returned by the chain when every provider failed or
// returned nothing usable.
var ErrNoResult = errors.New("llm: no provider produced a result")

// MatchCandidate is one canonical product offered to the model for matching.
type MatchCandidate struct {
	ProductID string `json:"produto_id"`
	Name      string `json:"nome"`
}

// MatchResult is the model's verdict on a product match.
type MatchResult struct {
	Match     bool   `json:"match"`
	ProductID string `json:"produto_id"`
}

// Provider is a single model backend.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// ParseOffers extracts structured offers from raw message text.
	ParseOffers(ctx context.Context, message string) ([]extract.Offer, error)
	// MatchProduct decides whether officialName refers to one of candidates.
	MatchProduct(ctx context.Context, officialName string, candidates []MatchCandidate) (MatchResult, error)
}

// Chain tries providers in order and returns the first usable answer.
type Chain struct {
	providers []Provider
}

// NewChain builds a chain from the given providers, skipping nils.
func NewChain(providers ...Provider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// ParseOffers runs the message through the providers in order and returns
// the first non-empty result. Failing providers are logged and skipped.
func (c *Chain) ParseOffers(ctx context.Context, message string) ([]extract.Offer, error) {
	for _, p := range c.providers {
		offers, err := p.ParseOffers(ctx, message)
		if err != nil {
			if !errors.Is(err, ErrUnconfigured) {
				log.Ctx(ctx).Warn().Err(err).Str("provider", p.Name()).Msg("semantic parse failed, trying next provider")
			}
			continue
		}
		if len(offers) > 0 {
			return offers, nil
		}
	}
	return nil, ErrNoResult
}

// MatchProduct asks the providers whether officialName refers to one of the
// candidates. Answers naming an id outside the candidate set are discarded:
// models are told not to invent ids but are not trusted to comply. A chain
// with no usable answer resolves to no-match rather than an error.
func (c *Chain) MatchProduct(ctx context.Context, officialName string, candidates []MatchCandidate) MatchResult {
	if officialName == "" || len(candidates) == 0 {
		return MatchResult{}
	}
	known := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		known[cand.ProductID] = struct{}{}
	}
	for _, p := range c.providers {
		res, err := p.MatchProduct(ctx, officialName, candidates)
		if err != nil {
			if !errors.Is(err, ErrUnconfigured) {
				log.Ctx(ctx).Warn().Err(err).Str("provider", p.Name()).Msg("product match failed, trying next provider")
			}
			continue
		}
		if !res.Match || res.ProductID == "" {
			return MatchResult{}
		}
		if _, ok := known[res.ProductID]; !ok {
			log.Ctx(ctx).Warn().Str("provider", p.Name()).Str("product_id", res.ProductID).Msg("match answer named an unknown product id, discarding")
			return MatchResult{}
		}
		return res
	}
	return MatchResult{}
}

// decodeOffers parses a model answer into offers. Accepts a bare JSON object
// or array, with or without a markdown code fence around it.
func decodeOffers(raw string) ([]extract.Offer, error) {
	cleaned := stripFence(raw)
	if cleaned == "" {
		return nil, errors.New("llm: empty answer")
	}
	if strings.HasPrefix(cleaned, "[") {
		var many []extract.Offer
		if err := json.Unmarshal([]byte(cleaned), &many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one extract.Offer
	if err := json.Unmarshal([]byte(cleaned), &one); err != nil {
		return nil, err
	}
	return []extract.Offer{one}, nil
}

func decodeMatch(raw string) (MatchResult, error) {
	cleaned := stripFence(raw)
	if cleaned == "" {
		return MatchResult{}, errors.New("llm: empty answer")
	}
	var res MatchResult
	if err := json.Unmarshal([]byte(cleaned), &res); err != nil {
		return MatchResult{}, err
	}
	return res, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
