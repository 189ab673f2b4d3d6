package services

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/domain"
)

// ----- Render -----

func TestRenderTemplate(t *testing.T) {
	cases := []struct {
		name string
		body string
		vars TemplateVars
		want string
	}{
		{
			name: "all placeholders",
			body: "🔥 {{nome_msg}}\n{{ oferta }}\nLink: {{link_afiliado}}",
			vars: TemplateVars{MessageName: "Notebook X", OfferBody: "por R$ 2500", AffiliateLink: "https://a.io/x"},
			want: "🔥 Notebook X\npor R$ 2500\nLink: https://a.io/x",
		},
		{
			name: "missing values render empty",
			body: "{{nome_msg}} -> {{link_afiliado}}",
			vars: TemplateVars{},
			want: "->",
		},
		{
			name: "unknown placeholder untouched",
			body: "{{preco}} {{nome_msg}}",
			vars: TemplateVars{MessageName: "X"},
			want: "{{preco}} X",
		},
		{
			name: "empty body",
			body: "",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderTemplate(tc.body, tc.vars); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// ----- Service -----

type fakeTemplateRepo struct {
	active  []domain.Template
	listed  TemplateListFilter
	created *domain.Template

	updatedID   string
	updatedName string
	updatedBody string
	updatedFlag *bool
	updateErr   error
}

func (r *fakeTemplateRepo) ListActiveTemplates(ctx context.Context, db *gorm.DB, marketplace, offerType string) ([]domain.Template, error) {
	return r.active, nil
}

func (r *fakeTemplateRepo) ListTemplates(ctx context.Context, db *gorm.DB, f TemplateListFilter) ([]domain.Template, error) {
	r.listed = f
	return r.active, nil
}

func (r *fakeTemplateRepo) CreateTemplate(ctx context.Context, db *gorm.DB, tpl *domain.Template) error {
	tpl.ID = "tpl-1"
	r.created = tpl
	return nil
}

func (r *fakeTemplateRepo) UpdateTemplate(ctx context.Context, db *gorm.DB, id, name, body string, active *bool) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updatedID, r.updatedName, r.updatedBody, r.updatedFlag = id, name, body, active
	return nil
}

func TestTemplateRandom(t *testing.T) {
	repo := &fakeTemplateRepo{active: []domain.Template{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	s := NewTemplateService(nil, repo)
	s.Rand = rand.New(rand.NewSource(1))

	seen := map[string]bool{}
	for range 50 {
		tpl, err := s.Random(context.Background(), "", "")
		if err != nil {
			t.Fatalf("Random: %v", err)
		}
		seen[tpl.ID] = true
	}
	if len(seen) < 2 {
		t.Errorf("random pick never varied: %v", seen)
	}
}

func TestTemplateRandom_NoneActive(t *testing.T) {
	s := NewTemplateService(nil, &fakeTemplateRepo{})

	if _, err := s.Random(context.Background(), "mercadolivre", "padrao"); err != ErrTemplateNotFound {
		t.Errorf("err = %v, want ErrTemplateNotFound", err)
	}
}

func TestTemplateCreate(t *testing.T) {
	repo := &fakeTemplateRepo{}
	s := NewTemplateService(nil, repo)

	err := s.Create(context.Background(), &domain.Template{Name: "padrao-1", Body: "{{oferta}}"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if repo.created.Marketplace != "mercadolivre" || repo.created.OfferType != "padrao" {
		t.Errorf("defaults not applied: %+v", repo.created)
	}

	if err := s.Create(context.Background(), &domain.Template{Name: "x"}); err == nil {
		t.Error("missing body accepted")
	}
	if err := s.Create(context.Background(), &domain.Template{Body: "x"}); err == nil {
		t.Error("missing name accepted")
	}
}

func TestTemplateUpdate(t *testing.T) {
	repo := &fakeTemplateRepo{}
	s := NewTemplateService(nil, repo)

	off := false
	if err := s.Update(context.Background(), " tpl-1 ", " novo nome ", "{{oferta}}", &off); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if repo.updatedID != "tpl-1" || repo.updatedName != "novo nome" || repo.updatedBody != "{{oferta}}" {
		t.Errorf("update args: %q %q %q", repo.updatedID, repo.updatedName, repo.updatedBody)
	}
	if repo.updatedFlag == nil || *repo.updatedFlag {
		t.Errorf("flag = %v", repo.updatedFlag)
	}

	var verr *ValidationError
	if err := s.Update(context.Background(), " ", "", "", nil); !errors.As(err, &verr) {
		t.Fatalf("blank id: err = %v, want ValidationError", err)
	}

	repo.updateErr = gorm.ErrRecordNotFound
	if err := s.Update(context.Background(), "ghost", "", "", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("missing template: err = %v, want ErrTemplateNotFound", err)
	}
}

func TestRenderRandom(t *testing.T) {
	repo := &fakeTemplateRepo{active: []domain.Template{{ID: "tpl-1", Body: "{{nome_msg}}!"}}}
	s := NewTemplateService(nil, repo)

	tpl, text, err := s.RenderRandom(context.Background(), "", "", TemplateVars{MessageName: "Fone"})
	if err != nil {
		t.Fatalf("RenderRandom: %v", err)
	}
	if tpl.ID != "tpl-1" || text != "Fone!" {
		t.Errorf("got %q from %+v", text, tpl)
	}
}
