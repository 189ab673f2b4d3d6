// Package services – TemplateService
//
// This file implements dispatch template management and rendering. A
// template body carries {{nome_msg}}, {{oferta}} and {{link_afiliado}}
// placeholders; everything else is passed through verbatim so curators keep
// full control over emoji and formatting.
package services

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// placeholderRE matches the supported template placeholders, with optional
// inner whitespace.
var placeholderRE = regexp.MustCompile(`\{\{\s*(nome_msg|oferta|link_afiliado)\s*\}\}`)

// TemplateVars are the values substituted into a template body. Empty
// fields render as empty strings.
type TemplateVars struct {
	MessageName   string
	OfferBody     string
	AffiliateLink string
}

// RenderTemplate substitutes the placeholders in body and trims the result.
func RenderTemplate(body string, vars TemplateVars) string {
	if body == "" {
		return ""
	}
	out := placeholderRE.ReplaceAllStringFunc(body, func(m string) string {
		switch {
		case strings.Contains(m, "nome_msg"):
			return vars.MessageName
		case strings.Contains(m, "oferta"):
			return vars.OfferBody
		default:
			return vars.AffiliateLink
		}
	})
	return strings.TrimSpace(out)
}

// TemplateRepo defines the repository contract required by TemplateService.
type TemplateRepo interface {
	ListActiveTemplates(ctx context.Context, db *gorm.DB, marketplace, offerType string) ([]domain.Template, error)
	ListTemplates(ctx context.Context, db *gorm.DB, f TemplateListFilter) ([]domain.Template, error)
	CreateTemplate(ctx context.Context, db *gorm.DB, t *domain.Template) error
	UpdateTemplate(ctx context.Context, db *gorm.DB, id, name, body string, active *bool) error
}

// TemplateListFilter narrows template listings. Nil fields are ignored.
type TemplateListFilter struct {
	Marketplace string
	OfferType   string
	Active      *bool
}

// TemplateService manages dispatch templates.
type TemplateService struct {
	DB   *gorm.DB
	Repo TemplateRepo

	// Rand picks among eligible templates; defaults to the shared source.
	Rand *rand.Rand
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(db *gorm.DB, r TemplateRepo) *TemplateService {
	return &TemplateService{DB: db, Repo: r}
}

func (s *TemplateService) intn(n int) int {
	if s.Rand != nil {
		return s.Rand.Intn(n)
	}
	return rand.Intn(n)
}

// Random returns one active template for the (marketplace, offer type) pair,
// chosen uniformly. ErrTemplateNotFound when none is active.
func (s *TemplateService) Random(ctx context.Context, marketplace, offerType string) (*domain.Template, error) {
	if marketplace == "" {
		marketplace = DefaultMarketplace
	}
	if offerType == "" {
		offerType = "padrao"
	}
	items, err := s.Repo.ListActiveTemplates(ctx, s.DB, marketplace, offerType)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrTemplateNotFound
	}
	t := items[s.intn(len(items))]
	return &t, nil
}

// List returns templates matching the filter.
func (s *TemplateService) List(ctx context.Context, f TemplateListFilter) ([]domain.Template, error) {
	return s.Repo.ListTemplates(ctx, s.DB, f)
}

// Create validates and persists a template. Name and body are required;
// marketplace and offer type fall back to the defaults.
func (s *TemplateService) Create(ctx context.Context, t *domain.Template) error {
	var missing []string
	if strings.TrimSpace(t.Name) == "" {
		missing = append(missing, "nome")
	}
	if strings.TrimSpace(t.Body) == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if t.Marketplace == "" {
		t.Marketplace = DefaultMarketplace
	}
	if t.OfferType == "" {
		t.OfferType = "padrao"
	}
	return s.Repo.CreateTemplate(ctx, s.DB, t)
}

// Update adjusts a stored template. Empty name or body keep the stored
// value; a nil active pointer keeps the flag.
func (s *TemplateService) Update(ctx context.Context, id, name, body string, active *bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Missing: []string{"template_id"}}
	}
	if err := s.Repo.UpdateTemplate(ctx, s.DB, id, strings.TrimSpace(name), body, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTemplateNotFound
		}
		return err
	}
	return nil
}

// RenderRandom picks a random active template and renders it with vars.
func (s *TemplateService) RenderRandom(ctx context.Context, marketplace, offerType string, vars TemplateVars) (*domain.Template, string, error) {
	t, err := s.Random(ctx, marketplace, offerType)
	if err != nil {
		return nil, "", err
	}
	return t, RenderTemplate(t.Body, vars), nil
}
