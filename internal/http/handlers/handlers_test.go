package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/scraper"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// ---------- service stubs ----------

type stubIngest struct {
	ingest func(context.Context, json.RawMessage) (*services.IngestResult, error)
}

func (s stubIngest) Ingest(ctx context.Context, raw json.RawMessage) (*services.IngestResult, error) {
	if s.ingest != nil {
		return s.ingest(ctx, raw)
	}
	return &services.IngestResult{CorrelationID: "corr-1"}, nil
}

type stubPipeline struct {
	process  func(context.Context, string, string) (*services.PipelineResult, error)
	decision func(context.Context, services.DecisionInput) (*services.PipelineResult, error)
}

func (s stubPipeline) ProcessOffer(ctx context.Context, offerID, marketplace string) (*services.PipelineResult, error) {
	if s.process != nil {
		return s.process(ctx, offerID, marketplace)
	}
	return &services.PipelineResult{OK: true, Status: domain.StatusProductOK}, nil
}

func (s stubPipeline) ProcessDecision(ctx context.Context, in services.DecisionInput) (*services.PipelineResult, error) {
	if s.decision != nil {
		return s.decision(ctx, in)
	}
	return &services.PipelineResult{OK: true, Status: domain.StatusProductPending}, nil
}

type stubDispatch struct {
	send func(context.Context, string) (*services.DispatchResult, error)
}

func (s stubDispatch) Send(ctx context.Context, offerID string) (*services.DispatchResult, error) {
	if s.send != nil {
		return s.send(ctx, offerID)
	}
	return &services.DispatchResult{OK: true, Status: domain.StatusSent}, nil
}

type stubScrape struct {
	link  func(context.Context, string) (*scraper.Result, error)
	offer func(context.Context, string) (*scraper.Result, error)
}

func (s stubScrape) ScrapeLink(ctx context.Context, link string) (*scraper.Result, error) {
	if s.link != nil {
		return s.link(ctx, link)
	}
	return &scraper.Result{OK: true}, nil
}

func (s stubScrape) ScrapeOffer(ctx context.Context, offerID string) (*scraper.Result, error) {
	if s.offer != nil {
		return s.offer(ctx, offerID)
	}
	return &scraper.Result{OK: true}, nil
}

type stubCoupons struct {
	list      func(context.Context, string) ([]domain.Coupon, error)
	setStatus func(context.Context, string, string) error
	remove    func(context.Context, string) error
}

func (s stubCoupons) List(ctx context.Context, status string) ([]domain.Coupon, error) {
	if s.list != nil {
		return s.list(ctx, status)
	}
	return nil, nil
}

func (s stubCoupons) SetStatus(ctx context.Context, code, status string) error {
	if s.setStatus != nil {
		return s.setStatus(ctx, code, status)
	}
	return nil
}

func (s stubCoupons) Remove(ctx context.Context, code string) error {
	if s.remove != nil {
		return s.remove(ctx, code)
	}
	return nil
}

type stubQueue struct {
	list    func(context.Context, string, int, int) ([]domain.QueueItem, error)
	confirm func(context.Context, services.ConfirmInput) (string, error)
}

func (s stubQueue) List(ctx context.Context, status string, limit, offset int) ([]domain.QueueItem, error) {
	if s.list != nil {
		return s.list(ctx, status, limit, offset)
	}
	return nil, nil
}

func (s stubQueue) Confirm(ctx context.Context, in services.ConfirmInput) (string, error) {
	if s.confirm != nil {
		return s.confirm(ctx, in)
	}
	return "link-1", nil
}

type stubProducts struct {
	create        func(context.Context, string, string) (string, error)
	list          func(context.Context, *bool) ([]domain.Product, error)
	listLinks     func(context.Context, string) ([]domain.MarketplaceLink, error)
	setLinkActive func(context.Context, string, bool) error
	marketplaces  func(context.Context) ([]string, error)
}

func (s stubProducts) Create(ctx context.Context, officialName, messageName string) (string, error) {
	if s.create != nil {
		return s.create(ctx, officialName, messageName)
	}
	return "prod-1", nil
}

func (s stubProducts) List(ctx context.Context, active *bool) ([]domain.Product, error) {
	if s.list != nil {
		return s.list(ctx, active)
	}
	return nil, nil
}

func (s stubProducts) ListLinks(ctx context.Context, marketplace string) ([]domain.MarketplaceLink, error) {
	if s.listLinks != nil {
		return s.listLinks(ctx, marketplace)
	}
	return nil, nil
}

func (s stubProducts) SetLinkActive(ctx context.Context, id string, active bool) error {
	if s.setLinkActive != nil {
		return s.setLinkActive(ctx, id, active)
	}
	return nil
}

func (s stubProducts) Marketplaces(ctx context.Context) ([]string, error) {
	if s.marketplaces != nil {
		return s.marketplaces(ctx)
	}
	return nil, nil
}

type stubTemplates struct {
	list   func(context.Context, services.TemplateListFilter) ([]domain.Template, error)
	create func(context.Context, *domain.Template) error
	update func(context.Context, string, string, string, *bool) error
	render func(context.Context, string, string, services.TemplateVars) (*domain.Template, string, error)
}

func (s stubTemplates) List(ctx context.Context, f services.TemplateListFilter) ([]domain.Template, error) {
	if s.list != nil {
		return s.list(ctx, f)
	}
	return nil, nil
}

func (s stubTemplates) Create(ctx context.Context, t *domain.Template) error {
	if s.create != nil {
		return s.create(ctx, t)
	}
	t.ID = "tpl-1"
	return nil
}

func (s stubTemplates) Update(ctx context.Context, id, name, body string, active *bool) error {
	if s.update != nil {
		return s.update(ctx, id, name, body, active)
	}
	return nil
}

func (s stubTemplates) RenderRandom(ctx context.Context, marketplace, offerType string, vars services.TemplateVars) (*domain.Template, string, error) {
	if s.render != nil {
		return s.render(ctx, marketplace, offerType, vars)
	}
	return &domain.Template{ID: "tpl-1", Name: "padrao"}, "texto", nil
}

type stubGroups struct {
	sync      func(context.Context, string, string) (int, string, error)
	setActive func(context.Context, string, string, bool) error
	list      func(context.Context, services.GroupListFilter) ([]domain.Group, error)
}

func (s stubGroups) Sync(ctx context.Context, instanceID, instanceName string) (int, string, error) {
	if s.sync != nil {
		return s.sync(ctx, instanceID, instanceName)
	}
	return 0, instanceID, nil
}

func (s stubGroups) SetActive(ctx context.Context, instanceID, groupID string, active bool) error {
	if s.setActive != nil {
		return s.setActive(ctx, instanceID, groupID, active)
	}
	return nil
}

func (s stubGroups) List(ctx context.Context, f services.GroupListFilter) ([]domain.Group, error) {
	if s.list != nil {
		return s.list(ctx, f)
	}
	return nil, nil
}

type stubInstances struct {
	sync func(context.Context) (int, error)
	list func(context.Context) ([]domain.Instance, error)
}

func (s stubInstances) Sync(ctx context.Context) (int, error) {
	if s.sync != nil {
		return s.sync(ctx)
	}
	return 0, nil
}

func (s stubInstances) List(ctx context.Context) ([]domain.Instance, error) {
	if s.list != nil {
		return s.list(ctx)
	}
	return nil, nil
}

// ---------- helpers ----------

type stubSet struct {
	ingest    stubIngest
	pipeline  stubPipeline
	dispatch  stubDispatch
	scrape    stubScrape
	coupons   stubCoupons
	queue     stubQueue
	products  stubProducts
	templates stubTemplates
	groups    stubGroups
	instances stubInstances
}

func newTestHandlers(s stubSet) *Handlers {
	return New(s.ingest, s.pipeline, s.dispatch, s.scrape, s.coupons, s.queue, s.products, s.templates, s.groups, s.instances)
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	return out
}

// ---------- webhook ----------

func TestWebhook_BadJSON_MissingFields_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Bad JSON -> 400
	{
		h := newTestHandlers(stubSet{})
		r := gin.New()
		r.POST("/webhook", h.Webhook)
		w := doJSON(t, r, http.MethodPost, "/webhook", "{bad")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad json -> %d", w.Code)
		}
	}

	// Missing fields -> 422 with the field list
	{
		h := newTestHandlers(stubSet{ingest: stubIngest{
			ingest: func(context.Context, json.RawMessage) (*services.IngestResult, error) {
				return nil, &services.ValidationError{Missing: []string{"instance_id", "legenda"}}
			},
		}})
		r := gin.New()
		r.POST("/webhook", h.Webhook)
		w := doJSON(t, r, http.MethodPost, "/webhook", `{}`)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("missing fields -> %d", w.Code)
		}
		out := decodeBody(t, w)
		if out["error"] != "missing_required_fields" {
			t.Fatalf("error code = %v", out["error"])
		}
		if missing, _ := out["missing"].([]any); len(missing) != 2 {
			t.Fatalf("missing = %v", out["missing"])
		}
	}

	// Success echoes correlation id and duplicate flag
	{
		h := newTestHandlers(stubSet{ingest: stubIngest{
			ingest: func(_ context.Context, raw json.RawMessage) (*services.IngestResult, error) {
				if len(raw) == 0 {
					t.Fatal("empty raw payload")
				}
				return &services.IngestResult{CorrelationID: "corr-9", Duplicate: true}, nil
			},
		}})
		r := gin.New()
		r.POST("/webhook", h.Webhook)
		w := doJSON(t, r, http.MethodPost, "/webhook", `{"instance":"a"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("webhook -> %d body=%s", w.Code, w.Body.String())
		}
		out := decodeBody(t, w)
		if out["ok"] != true || out["correlation_id"] != "corr-9" || out["duplicate"] != true {
			t.Fatalf("unexpected body: %v", out)
		}
	}
}

// ---------- pipeline ----------

func TestProcessOffer_Responses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	route := func(s stubSet) *gin.Engine {
		r := gin.New()
		r.POST("/pipeline/oferta/processar", newTestHandlers(s).ProcessOffer)
		return r
	}

	// Missing oferta_id -> 422
	w := doJSON(t, route(stubSet{}), http.MethodPost, "/pipeline/oferta/processar", `{}`)
	if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "oferta_id_required" {
		t.Fatalf("missing id -> %d %s", w.Code, w.Body.String())
	}

	// Unknown offer -> 404
	w = doJSON(t, route(stubSet{pipeline: stubPipeline{
		process: func(context.Context, string, string) (*services.PipelineResult, error) {
			return nil, services.ErrOfferNotFound
		},
	}}), http.MethodPost, "/pipeline/oferta/processar", `{"oferta_id":"x"}`)
	if w.Code != http.StatusNotFound || decodeBody(t, w)["error"] != "oferta_not_found" {
		t.Fatalf("not found -> %d %s", w.Code, w.Body.String())
	}

	// Unsupported marketplace -> 422
	w = doJSON(t, route(stubSet{pipeline: stubPipeline{
		process: func(context.Context, string, string) (*services.PipelineResult, error) {
			return nil, services.ErrMarketplaceNotSupported
		},
	}}), http.MethodPost, "/pipeline/oferta/processar", `{"oferta_id":"x","marketplace":"amazon"}`)
	if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "marketplace_not_supported" {
		t.Fatalf("marketplace -> %d %s", w.Code, w.Body.String())
	}

	// Gate halt -> 200 with ok=false and the status the offer was left in
	w = doJSON(t, route(stubSet{pipeline: stubPipeline{
		process: func(context.Context, string, string) (*services.PipelineResult, error) {
			return &services.PipelineResult{OK: false, Status: domain.StatusCouponPending}, nil
		},
	}}), http.MethodPost, "/pipeline/oferta/processar", `{"oferta_id":"x"}`)
	out := decodeBody(t, w)
	if w.Code != http.StatusOK || out["ok"] != false || out["status"] != "cupom_pendente" {
		t.Fatalf("halt -> %d %v", w.Code, out)
	}

	// Resolved -> produto_ok with link data
	w = doJSON(t, route(stubSet{pipeline: stubPipeline{
		process: func(_ context.Context, offerID, marketplace string) (*services.PipelineResult, error) {
			if offerID != "off-1" || marketplace != "mercadolivre" {
				t.Fatalf("args = %q %q", offerID, marketplace)
			}
			return &services.PipelineResult{
				OK: true, Status: domain.StatusProductOK,
				ProductMarketplaceID: "MLB1", ProductID: "prod-1",
			}, nil
		},
	}}), http.MethodPost, "/pipeline/oferta/processar", `{"oferta_id":"off-1","marketplace":"mercadolivre"}`)
	out = decodeBody(t, w)
	if out["status"] != "produto_ok" || out["produto_marketplace_id"] != "MLB1" || out["produto_id"] != "prod-1" {
		t.Fatalf("produto_ok body: %v", out)
	}

	// Queued without suggestion -> produto_id_sugerido is null
	w = doJSON(t, route(stubSet{pipeline: stubPipeline{
		process: func(context.Context, string, string) (*services.PipelineResult, error) {
			return &services.PipelineResult{OK: true, Status: domain.StatusProductPending, QueueID: "fila-1"}, nil
		},
	}}), http.MethodPost, "/pipeline/oferta/processar", `{"oferta_id":"x"}`)
	out = decodeBody(t, w)
	if out["fila_id"] != "fila-1" {
		t.Fatalf("fila_id = %v", out["fila_id"])
	}
	if v, present := out["produto_id_sugerido"]; !present || v != nil {
		t.Fatalf("produto_id_sugerido = %v (present=%v)", v, present)
	}
}

func TestProcessDecision_Responses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	route := func(s stubSet) *gin.Engine {
		r := gin.New()
		r.POST("/pipeline/produto/decisao", newTestHandlers(s).ProcessDecision)
		return r
	}

	// Missing marketplace product id -> 422
	w := doJSON(t, route(stubSet{pipeline: stubPipeline{
		decision: func(context.Context, services.DecisionInput) (*services.PipelineResult, error) {
			return nil, &services.ValidationError{Missing: []string{"marketplace_product_id"}}
		},
	}}), http.MethodPost, "/pipeline/produto/decisao", `{}`)
	if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "marketplace_product_id_required" {
		t.Fatalf("missing mp id -> %d %s", w.Code, w.Body.String())
	}

	// Existing active link -> produto_ok shape
	w = doJSON(t, route(stubSet{pipeline: stubPipeline{
		decision: func(_ context.Context, in services.DecisionInput) (*services.PipelineResult, error) {
			if in.MarketplaceProductID != "MLB9" {
				t.Fatalf("mp id = %q", in.MarketplaceProductID)
			}
			return &services.PipelineResult{
				OK: true, Status: domain.StatusProductOK,
				ProductMarketplaceID: "MLB9", ProductID: "prod-2",
			}, nil
		},
	}}), http.MethodPost, "/pipeline/produto/decisao", `{"marketplace_product_id":" MLB9 "}`)
	out := decodeBody(t, w)
	if out["status"] != "produto_ok" || out["produto_id"] != "prod-2" {
		t.Fatalf("produto_ok body: %v", out)
	}

	// Queued -> produto_pendente with the provisioned product and null suggestion
	w = doJSON(t, route(stubSet{pipeline: stubPipeline{
		decision: func(context.Context, services.DecisionInput) (*services.PipelineResult, error) {
			return &services.PipelineResult{OK: true, Status: domain.StatusProductPending, ProductID: "prod-3"}, nil
		},
	}}), http.MethodPost, "/pipeline/produto/decisao", `{"marketplace_product_id":"MLB9"}`)
	out = decodeBody(t, w)
	if out["status"] != "produto_pendente" || out["produto_id"] != "prod-3" {
		t.Fatalf("pendente body: %v", out)
	}
	if v, present := out["produto_id_sugerido"]; !present || v != nil {
		t.Fatalf("produto_id_sugerido = %v (present=%v)", v, present)
	}
}

// ---------- dispatch ----------

func TestDispatch_Responses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	route := func(s stubSet) *gin.Engine {
		r := gin.New()
		r.POST("/dispatcher/enviar", newTestHandlers(s).Dispatch)
		return r
	}

	// Missing id -> 422
	w := doJSON(t, route(stubSet{}), http.MethodPost, "/dispatcher/enviar", `{}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing id -> %d", w.Code)
	}

	// No matching template -> 404 template_not_found
	w = doJSON(t, route(stubSet{dispatch: stubDispatch{
		send: func(context.Context, string) (*services.DispatchResult, error) {
			return nil, services.ErrTemplateNotFound
		},
	}}), http.MethodPost, "/dispatcher/enviar", `{"oferta_id":"x"}`)
	if w.Code != http.StatusNotFound || decodeBody(t, w)["error"] != "template_not_found" {
		t.Fatalf("template -> %d %s", w.Code, w.Body.String())
	}

	// Precondition failure -> 200 with the reason
	w = doJSON(t, route(stubSet{dispatch: stubDispatch{
		send: func(context.Context, string) (*services.DispatchResult, error) {
			return &services.DispatchResult{OK: false, Status: domain.StatusNoPhoto, Reason: "produto_sem_foto"}, nil
		},
	}}), http.MethodPost, "/dispatcher/enviar", `{"oferta_id":"x"}`)
	out := decodeBody(t, w)
	if w.Code != http.StatusOK || out["ok"] != false || out["error"] != "produto_sem_foto" {
		t.Fatalf("blocked -> %d %v", w.Code, out)
	}

	// Fan-out -> enviada with per-group outcomes
	w = doJSON(t, route(stubSet{dispatch: stubDispatch{
		send: func(_ context.Context, offerID string) (*services.DispatchResult, error) {
			if offerID != "off-1" {
				t.Fatalf("offer id = %q", offerID)
			}
			return &services.DispatchResult{
				OK: true, Status: domain.StatusSent,
				Groups: []domain.GroupResult{{GroupID: "a@g.us", OK: true}, {GroupID: "b@g.us", OK: false}},
			}, nil
		},
	}}), http.MethodPost, "/dispatcher/enviar", `{"oferta_id":"off-1"}`)
	out = decodeBody(t, w)
	if out["status"] != "enviada" {
		t.Fatalf("status = %v", out["status"])
	}
	if groups, _ := out["grupos"].([]any); len(groups) != 2 {
		t.Fatalf("grupos = %v", out["grupos"])
	}
}

// ---------- scraper ----------

func TestScrape_Responses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Missing link -> 422
	{
		h := newTestHandlers(stubSet{scrape: stubScrape{
			link: func(context.Context, string) (*scraper.Result, error) {
				return nil, &services.ValidationError{Missing: []string{"link"}}
			},
		}})
		r := gin.New()
		r.POST("/scrape/mercadolivre", h.ScrapeLink)
		w := doJSON(t, r, http.MethodPost, "/scrape/mercadolivre", `{}`)
		if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "link_required" {
			t.Fatalf("link required -> %d %s", w.Code, w.Body.String())
		}
	}

	// Verdict passes through verbatim, including rejections
	{
		h := newTestHandlers(stubSet{scrape: stubScrape{
			link: func(_ context.Context, link string) (*scraper.Result, error) {
				if link != "https://x" {
					t.Fatalf("link = %q", link)
				}
				return &scraper.Result{
					OK:         false,
					Validation: scraper.Validation{Reasons: []string{"sem_imagens"}},
				}, nil
			},
		}})
		r := gin.New()
		r.POST("/scrape/mercadolivre", h.ScrapeLink)
		w := doJSON(t, r, http.MethodPost, "/scrape/mercadolivre", `{"link":"https://x"}`)
		out := decodeBody(t, w)
		if w.Code != http.StatusOK || out["ok"] != false {
			t.Fatalf("verdict -> %d %v", w.Code, out)
		}
	}

	// Offer without a stored link -> 200 sem_link
	{
		h := newTestHandlers(stubSet{scrape: stubScrape{
			offer: func(context.Context, string) (*scraper.Result, error) {
				return nil, services.ErrMissingLink
			},
		}})
		r := gin.New()
		r.POST("/scrape/mercadolivre/oferta", h.ScrapeOffer)
		w := doJSON(t, r, http.MethodPost, "/scrape/mercadolivre/oferta", `{"oferta_id":"x"}`)
		out := decodeBody(t, w)
		if w.Code != http.StatusOK || out["ok"] != false || out["error"] != "sem_link" {
			t.Fatalf("sem_link -> %d %v", w.Code, out)
		}
	}

	// Unknown offer -> 404
	{
		h := newTestHandlers(stubSet{scrape: stubScrape{
			offer: func(context.Context, string) (*scraper.Result, error) {
				return nil, services.ErrOfferNotFound
			},
		}})
		r := gin.New()
		r.POST("/scrape/mercadolivre/oferta", h.ScrapeOffer)
		w := doJSON(t, r, http.MethodPost, "/scrape/mercadolivre/oferta", `{"oferta_id":"x"}`)
		if w.Code != http.StatusNotFound {
			t.Fatalf("not found -> %d", w.Code)
		}
	}
}

// ---------- coupons ----------

func TestCoupons_Endpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// List passes the status through and wraps the rows
	{
		h := newTestHandlers(stubSet{coupons: stubCoupons{
			list: func(_ context.Context, status string) ([]domain.Coupon, error) {
				if status != "bloqueado" {
					t.Fatalf("status = %q", status)
				}
				return []domain.Coupon{{Code: "BAD1", Status: domain.CouponBlocked}}, nil
			},
		}})
		r := gin.New()
		r.GET("/cupons", h.ListCoupons)
		w := doJSON(t, r, http.MethodGet, "/cupons?status=bloqueado", "")
		out := decodeBody(t, w)
		if w.Code != http.StatusOK || out["ok"] != true {
			t.Fatalf("list -> %d %v", w.Code, out)
		}
		if coupons, _ := out["cupons"].([]any); len(coupons) != 1 {
			t.Fatalf("cupons = %v", out["cupons"])
		}
	}

	// Unknown status -> 422
	{
		h := newTestHandlers(stubSet{coupons: stubCoupons{
			list: func(context.Context, string) ([]domain.Coupon, error) {
				return nil, services.ErrInvalidCouponStatus
			},
		}})
		r := gin.New()
		r.GET("/cupons", h.ListCoupons)
		w := doJSON(t, r, http.MethodGet, "/cupons?status=nope", "")
		if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "status_invalido" {
			t.Fatalf("invalid status -> %d %s", w.Code, w.Body.String())
		}
	}

	// Approve forwards the code and the target status
	{
		var gotCode, gotStatus string
		h := newTestHandlers(stubSet{coupons: stubCoupons{
			setStatus: func(_ context.Context, code, status string) error {
				gotCode, gotStatus = code, status
				return nil
			},
		}})
		r := gin.New()
		r.POST("/cupons/aprovar", h.ApproveCoupon)
		r.POST("/cupons/bloquear", h.BlockCoupon)
		w := doJSON(t, r, http.MethodPost, "/cupons/aprovar", `{"codigo":"SAVE10"}`)
		if w.Code != http.StatusOK || gotCode != "SAVE10" || gotStatus != domain.CouponApproved {
			t.Fatalf("approve -> %d code=%q status=%q", w.Code, gotCode, gotStatus)
		}
		doJSON(t, r, http.MethodPost, "/cupons/bloquear", `{"codigo":"BAD1"}`)
		if gotStatus != domain.CouponBlocked {
			t.Fatalf("block status = %q", gotStatus)
		}
	}

	// Blank code -> 422 codigo_required
	{
		h := newTestHandlers(stubSet{coupons: stubCoupons{
			setStatus: func(context.Context, string, string) error {
				return &services.ValidationError{Missing: []string{"codigo"}}
			},
		}})
		r := gin.New()
		r.POST("/cupons/pendente", h.PendCoupon)
		w := doJSON(t, r, http.MethodPost, "/cupons/pendente", `{}`)
		if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "codigo_required" {
			t.Fatalf("blank code -> %d %s", w.Code, w.Body.String())
		}
	}

	// Remove forwards the code
	{
		var removed string
		h := newTestHandlers(stubSet{coupons: stubCoupons{
			remove: func(_ context.Context, code string) error {
				removed = code
				return nil
			},
		}})
		r := gin.New()
		r.POST("/cupons/remover", h.RemoveCoupon)
		w := doJSON(t, r, http.MethodPost, "/cupons/remover", `{"codigo":"OLD"}`)
		if w.Code != http.StatusOK || removed != "OLD" {
			t.Fatalf("remove -> %d code=%q", w.Code, removed)
		}
	}
}

// ---------- queue ----------

func TestListQueue_ClampsPaging(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotStatus string
	var gotLimit, gotOffset int
	h := newTestHandlers(stubSet{queue: stubQueue{
		list: func(_ context.Context, status string, limit, offset int) ([]domain.QueueItem, error) {
			gotStatus, gotLimit, gotOffset = status, limit, offset
			return []domain.QueueItem{{ID: "q1"}}, nil
		},
	}})
	r := gin.New()
	r.GET("/fila/produto", h.ListQueue)

	w := doJSON(t, r, http.MethodGet, "/fila/produto?limit=999&offset=-3", "")
	out := decodeBody(t, w)
	if gotLimit != 200 || gotOffset != 0 {
		t.Fatalf("clamped limit=%d offset=%d", gotLimit, gotOffset)
	}
	if out["limit"] != float64(200) || out["offset"] != float64(0) {
		t.Fatalf("echoed paging: %v", out)
	}
	if gotStatus != "" {
		t.Fatalf("status = %q", gotStatus)
	}
	if items, _ := out["items"].([]any); len(items) != 1 {
		t.Fatalf("items = %v", out["items"])
	}
}

func TestConfirmQueue_Responses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	route := func(s stubSet) *gin.Engine {
		r := gin.New()
		r.POST("/fila/produto/confirmar", newTestHandlers(s).ConfirmQueue)
		return r
	}

	// Missing identifiers -> fila_id_and_produto_id_required
	w := doJSON(t, route(stubSet{queue: stubQueue{
		confirm: func(context.Context, services.ConfirmInput) (string, error) {
			return "", &services.ValidationError{Missing: []string{"fila_id", "produto_id"}}
		},
	}}), http.MethodPost, "/fila/produto/confirmar", `{}`)
	if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "fila_id_and_produto_id_required" {
		t.Fatalf("ids -> %d %s", w.Code, w.Body.String())
	}

	// Missing marketplace data -> marketplace_data_required
	w = doJSON(t, route(stubSet{queue: stubQueue{
		confirm: func(context.Context, services.ConfirmInput) (string, error) {
			return "", &services.ValidationError{Missing: []string{"marketplace_product_id"}}
		},
	}}), http.MethodPost, "/fila/produto/confirmar", `{"fila_id":"f","produto_id":"p"}`)
	if decodeBody(t, w)["error"] != "marketplace_data_required" {
		t.Fatalf("marketplace data -> %s", w.Body.String())
	}

	// Unknown queue item -> 404
	w = doJSON(t, route(stubSet{queue: stubQueue{
		confirm: func(context.Context, services.ConfirmInput) (string, error) {
			return "", services.ErrQueueItemNotFound
		},
	}}), http.MethodPost, "/fila/produto/confirmar", `{"fila_id":"f","produto_id":"p"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("not found -> %d", w.Code)
	}

	// Success returns the created link id
	w = doJSON(t, route(stubSet{queue: stubQueue{
		confirm: func(_ context.Context, in services.ConfirmInput) (string, error) {
			if in.QueueID != "f1" || in.MarketplaceProductID != "MLB7" {
				t.Fatalf("input = %+v", in)
			}
			return "link-9", nil
		},
	}}), http.MethodPost, "/fila/produto/confirmar",
		`{"fila_id":"f1","produto_id":"p1","marketplace":"mercadolivre","marketplace_product_id":"MLB7","link_limpo":"https://x"}`)
	out := decodeBody(t, w)
	if w.Code != http.StatusOK || out["produto_marketplace_id"] != "link-9" {
		t.Fatalf("confirm -> %d %v", w.Code, out)
	}
}

// ---------- products ----------

func TestProducts_Endpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Missing official name -> 422
	{
		h := newTestHandlers(stubSet{products: stubProducts{
			create: func(context.Context, string, string) (string, error) {
				return "", &services.ValidationError{Missing: []string{"nome_oficial"}}
			},
		}})
		r := gin.New()
		r.POST("/produtos/criar", h.CreateProduct)
		w := doJSON(t, r, http.MethodPost, "/produtos/criar", `{}`)
		if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "nome_oficial_required" {
			t.Fatalf("missing name -> %d %s", w.Code, w.Body.String())
		}
	}

	// Create returns the product id
	{
		h := newTestHandlers(stubSet{products: stubProducts{
			create: func(_ context.Context, officialName, messageName string) (string, error) {
				if officialName != "Notebook X" || messageName != "note x" {
					t.Fatalf("args = %q %q", officialName, messageName)
				}
				return "prod-5", nil
			},
		}})
		r := gin.New()
		r.POST("/produtos/criar", h.CreateProduct)
		w := doJSON(t, r, http.MethodPost, "/produtos/criar", `{"nome_oficial":"Notebook X","nome_msg":"note x"}`)
		out := decodeBody(t, w)
		if w.Code != http.StatusOK || out["produto_id"] != "prod-5" {
			t.Fatalf("create -> %d %v", w.Code, out)
		}
	}

	// List parses the ativo filter; absent means nil
	{
		var got *bool
		h := newTestHandlers(stubSet{products: stubProducts{
			list: func(_ context.Context, active *bool) ([]domain.Product, error) {
				got = active
				return nil, nil
			},
		}})
		r := gin.New()
		r.GET("/produtos", h.ListProducts)

		doJSON(t, r, http.MethodGet, "/produtos", "")
		if got != nil {
			t.Fatalf("absent filter = %v", *got)
		}
		doJSON(t, r, http.MethodGet, "/produtos?ativo=false", "")
		if got == nil || *got {
			t.Fatalf("ativo=false filter = %v", got)
		}
	}

	// Link listing passes the marketplace filter through
	{
		h := newTestHandlers(stubSet{products: stubProducts{
			listLinks: func(_ context.Context, marketplace string) ([]domain.MarketplaceLink, error) {
				if marketplace != "amazon" {
					t.Fatalf("marketplace = %q", marketplace)
				}
				return []domain.MarketplaceLink{{ID: "l1"}}, nil
			},
		}})
		r := gin.New()
		r.GET("/produtos/links", h.ListLinks)
		w := doJSON(t, r, http.MethodGet, "/produtos/links?marketplace=amazon", "")
		if w.Code != http.StatusOK {
			t.Fatalf("links -> %d %s", w.Code, w.Body.String())
		}
	}

	// Link toggle: ativo defaults to true, missing id -> 422, unknown -> 404
	{
		var gotID string
		var gotActive bool
		h := newTestHandlers(stubSet{products: stubProducts{
			setLinkActive: func(_ context.Context, id string, active bool) error {
				switch id {
				case "":
					return &services.ValidationError{Missing: []string{"link_id"}}
				case "ghost":
					return services.ErrLinkNotFound
				}
				gotID, gotActive = id, active
				return nil
			},
		}})
		r := gin.New()
		r.POST("/produtos/links/ativar", h.ActivateLink)

		w := doJSON(t, r, http.MethodPost, "/produtos/links/ativar", `{"link_id":"l1"}`)
		if w.Code != http.StatusOK || gotID != "l1" || !gotActive {
			t.Fatalf("toggle -> %d id=%q active=%v", w.Code, gotID, gotActive)
		}
		w = doJSON(t, r, http.MethodPost, "/produtos/links/ativar", `{}`)
		if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "link_id_required" {
			t.Fatalf("missing id -> %d %s", w.Code, w.Body.String())
		}
		w = doJSON(t, r, http.MethodPost, "/produtos/links/ativar", `{"link_id":"ghost"}`)
		if w.Code != http.StatusNotFound || decodeBody(t, w)["error"] != "link_not_found" {
			t.Fatalf("unknown link -> %d %s", w.Code, w.Body.String())
		}
	}

	// Distinct marketplaces
	{
		h := newTestHandlers(stubSet{products: stubProducts{
			marketplaces: func(context.Context) ([]string, error) {
				return []string{"mercadolivre"}, nil
			},
		}})
		r := gin.New()
		r.GET("/produtos/marketplaces", h.ListMarketplaces)
		w := doJSON(t, r, http.MethodGet, "/produtos/marketplaces", "")
		if w.Code != http.StatusOK {
			t.Fatalf("marketplaces -> %d %s", w.Code, w.Body.String())
		}
	}
}

// ---------- templates ----------

func TestTemplates_Endpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Create passes defaults through the service and echoes the assigned id
	{
		h := newTestHandlers(stubSet{templates: stubTemplates{
			create: func(_ context.Context, tpl *domain.Template) error {
				if tpl.Name != "promo" || !tpl.Active {
					t.Fatalf("template = %+v", tpl)
				}
				tpl.ID = "tpl-7"
				return nil
			},
		}})
		r := gin.New()
		r.POST("/templates", h.CreateTemplate)
		w := doJSON(t, r, http.MethodPost, "/templates", `{"nome":" promo ","body":"{{oferta}}"}`)
		out := decodeBody(t, w)
		if w.Code != http.StatusOK || out["template_id"] != "tpl-7" {
			t.Fatalf("create -> %d %v", w.Code, out)
		}
	}

	// Missing name or body -> 422
	{
		h := newTestHandlers(stubSet{templates: stubTemplates{
			create: func(context.Context, *domain.Template) error {
				return &services.ValidationError{Missing: []string{"nome", "body"}}
			},
		}})
		r := gin.New()
		r.POST("/templates", h.CreateTemplate)
		w := doJSON(t, r, http.MethodPost, "/templates", `{"nome":"x","body":"y"}`)
		if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "nome_and_body_required" {
			t.Fatalf("missing -> %d %s", w.Code, w.Body.String())
		}
	}

	// ativo=false requests an inactive template
	{
		var gotActive *bool
		h := newTestHandlers(stubSet{templates: stubTemplates{
			create: func(_ context.Context, tpl *domain.Template) error {
				gotActive = &tpl.Active
				return nil
			},
		}})
		r := gin.New()
		r.POST("/templates", h.CreateTemplate)
		doJSON(t, r, http.MethodPost, "/templates", `{"nome":"x","body":"y","ativo":false}`)
		if gotActive == nil || *gotActive {
			t.Fatalf("active = %v", gotActive)
		}
	}

	// Update: missing id -> 422, unknown -> 404, success acks
	{
		var gotID, gotName string
		h := newTestHandlers(stubSet{templates: stubTemplates{
			update: func(_ context.Context, id, name, body string, active *bool) error {
				switch id {
				case "":
					return &services.ValidationError{Missing: []string{"template_id"}}
				case "ghost":
					return services.ErrTemplateNotFound
				}
				gotID, gotName = id, name
				return nil
			},
		}})
		r := gin.New()
		r.POST("/templates/atualizar", h.UpdateTemplate)

		w := doJSON(t, r, http.MethodPost, "/templates/atualizar", `{}`)
		if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "template_id_required" {
			t.Fatalf("missing id -> %d %s", w.Code, w.Body.String())
		}
		w = doJSON(t, r, http.MethodPost, "/templates/atualizar", `{"template_id":"ghost"}`)
		if w.Code != http.StatusNotFound || decodeBody(t, w)["error"] != "template_not_found" {
			t.Fatalf("unknown template -> %d %s", w.Code, w.Body.String())
		}
		w = doJSON(t, r, http.MethodPost, "/templates/atualizar", `{"template_id":"tpl-3","nome":"novo"}`)
		if w.Code != http.StatusOK || gotID != "tpl-3" || gotName != "novo" {
			t.Fatalf("update -> %d id=%q nome=%q", w.Code, gotID, gotName)
		}
	}

	// Render: no matching template -> 404
	{
		h := newTestHandlers(stubSet{templates: stubTemplates{
			render: func(context.Context, string, string, services.TemplateVars) (*domain.Template, string, error) {
				return nil, "", services.ErrTemplateNotFound
			},
		}})
		r := gin.New()
		r.POST("/templates/render", h.RenderTemplate)
		w := doJSON(t, r, http.MethodPost, "/templates/render", `{}`)
		if w.Code != http.StatusNotFound || decodeBody(t, w)["error"] != "template_not_found" {
			t.Fatalf("render 404 -> %d %s", w.Code, w.Body.String())
		}
	}

	// Render success carries the template identity and the final text
	{
		h := newTestHandlers(stubSet{templates: stubTemplates{
			render: func(_ context.Context, marketplace, offerType string, vars services.TemplateVars) (*domain.Template, string, error) {
				if marketplace != "mercadolivre" || vars.MessageName != "Notebook X" {
					t.Fatalf("args = %q vars=%+v", marketplace, vars)
				}
				return &domain.Template{ID: "tpl-1", Name: "padrao"}, "🔥 Notebook X", nil
			},
		}})
		r := gin.New()
		r.POST("/templates/render", h.RenderTemplate)
		w := doJSON(t, r, http.MethodPost, "/templates/render",
			`{"marketplace":"mercadolivre","nome_msg":"Notebook X"}`)
		out := decodeBody(t, w)
		if out["template_id"] != "tpl-1" || out["template_nome"] != "padrao" || out["texto"] != "🔥 Notebook X" {
			t.Fatalf("render body: %v", out)
		}
	}
}

// ---------- groups and instances ----------

func TestGroups_Endpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Sync: missing reference -> 422
	{
		h := newTestHandlers(stubSet{groups: stubGroups{
			sync: func(context.Context, string, string) (int, string, error) {
				return 0, "", &services.ValidationError{Missing: []string{"instance_id"}}
			},
		}})
		r := gin.New()
		r.POST("/grupos/sync", h.SyncGroups)
		w := doJSON(t, r, http.MethodPost, "/grupos/sync", `{}`)
		if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "instance_id_or_instance_name_required" {
			t.Fatalf("sync 422 -> %d %s", w.Code, w.Body.String())
		}
	}

	// Sync: unknown instance -> 404
	{
		h := newTestHandlers(stubSet{groups: stubGroups{
			sync: func(context.Context, string, string) (int, string, error) {
				return 0, "", services.ErrInstanceNotFound
			},
		}})
		r := gin.New()
		r.POST("/grupos/sync", h.SyncGroups)
		w := doJSON(t, r, http.MethodPost, "/grupos/sync", `{"instance_id":"ghost"}`)
		if w.Code != http.StatusNotFound || decodeBody(t, w)["error"] != "instance_not_found" {
			t.Fatalf("sync 404 -> %d %s", w.Code, w.Body.String())
		}
	}

	// Sync success reports the total and the resolved instance
	{
		h := newTestHandlers(stubSet{groups: stubGroups{
			sync: func(_ context.Context, instanceID, instanceName string) (int, string, error) {
				if instanceName != "principal" {
					t.Fatalf("name = %q", instanceName)
				}
				return 3, "inst-1", nil
			},
		}})
		r := gin.New()
		r.POST("/grupos/sync", h.SyncGroups)
		w := doJSON(t, r, http.MethodPost, "/grupos/sync", `{"instance_name":"principal"}`)
		out := decodeBody(t, w)
		if out["total"] != float64(3) || out["instance_id"] != "inst-1" {
			t.Fatalf("sync body: %v", out)
		}
	}

	// Activate defaults ativo to true
	{
		var gotActive bool
		h := newTestHandlers(stubSet{groups: stubGroups{
			setActive: func(_ context.Context, instanceID, groupID string, active bool) error {
				gotActive = active
				return nil
			},
		}})
		r := gin.New()
		r.POST("/grupos/ativar", h.ActivateGroup)
		doJSON(t, r, http.MethodPost, "/grupos/ativar", `{"instance_id":"i","group_id":"g"}`)
		if !gotActive {
			t.Fatal("default ativo should be true")
		}
		doJSON(t, r, http.MethodPost, "/grupos/ativar", `{"instance_id":"i","group_id":"g","ativo":false}`)
		if gotActive {
			t.Fatal("ativo=false not honored")
		}
	}

	// Activate: missing ids -> 422
	{
		h := newTestHandlers(stubSet{groups: stubGroups{
			setActive: func(context.Context, string, string, bool) error {
				return &services.ValidationError{Missing: []string{"group_id"}}
			},
		}})
		r := gin.New()
		r.POST("/grupos/ativar", h.ActivateGroup)
		w := doJSON(t, r, http.MethodPost, "/grupos/ativar", `{"instance_id":"i"}`)
		if w.Code != http.StatusUnprocessableEntity || decodeBody(t, w)["error"] != "instance_id_and_group_id_required" {
			t.Fatalf("activate 422 -> %d %s", w.Code, w.Body.String())
		}
	}

	// List forwards the filters
	{
		var gotFilter services.GroupListFilter
		h := newTestHandlers(stubSet{groups: stubGroups{
			list: func(_ context.Context, f services.GroupListFilter) ([]domain.Group, error) {
				gotFilter = f
				return []domain.Group{{GroupID: "g1"}}, nil
			},
		}})
		r := gin.New()
		r.GET("/grupos", h.ListGroups)
		w := doJSON(t, r, http.MethodGet, "/grupos?instance_id=inst-1&ativo=true", "")
		if gotFilter.InstanceID != "inst-1" || gotFilter.Active == nil || !*gotFilter.Active {
			t.Fatalf("filter = %+v", gotFilter)
		}
		out := decodeBody(t, w)
		if groups, _ := out["grupos"].([]any); len(groups) != 1 {
			t.Fatalf("grupos = %v", out["grupos"])
		}
	}
}

func TestInstances_Endpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Sync reports the upserted total
	{
		h := newTestHandlers(stubSet{instances: stubInstances{
			sync: func(context.Context) (int, error) { return 2, nil },
		}})
		r := gin.New()
		r.POST("/instancias/sync", h.SyncInstances)
		w := doJSON(t, r, http.MethodPost, "/instancias/sync", "")
		out := decodeBody(t, w)
		if w.Code != http.StatusOK || out["total"] != float64(2) {
			t.Fatalf("sync -> %d %v", w.Code, out)
		}
	}

	// Sync failure -> 500
	{
		h := newTestHandlers(stubSet{instances: stubInstances{
			sync: func(context.Context) (int, error) { return 0, errors.New("gateway down") },
		}})
		r := gin.New()
		r.POST("/instancias/sync", h.SyncInstances)
		w := doJSON(t, r, http.MethodPost, "/instancias/sync", "")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("sync error -> %d", w.Code)
		}
	}

	// List wraps the known instances
	{
		h := newTestHandlers(stubSet{instances: stubInstances{
			list: func(context.Context) ([]domain.Instance, error) {
				return []domain.Instance{{InstanceID: "inst-1", InstanceName: "principal"}}, nil
			},
		}})
		r := gin.New()
		r.GET("/instancias", h.ListInstances)
		w := doJSON(t, r, http.MethodGet, "/instancias", "")
		out := decodeBody(t, w)
		if instances, _ := out["instancias"].([]any); len(instances) != 1 {
			t.Fatalf("instancias = %v", out["instancias"])
		}
	}
}
