// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - The service boots with upstreams unconfigured: gateway, LLM and photo
//     storage are optional and the affected endpoints degrade cleanly
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/promopipe/go-offers-backend/internal/config"
	"github.com/promopipe/go-offers-backend/internal/domain"
	"github.com/promopipe/go-offers-backend/internal/http/handlers"
	"github.com/promopipe/go-offers-backend/internal/http/middleware"
	"github.com/promopipe/go-offers-backend/internal/repo"
	"github.com/promopipe/go-offers-backend/internal/services"
)

// MessagingGateway bundles every capability the pipeline needs from the
// messaging gateway. *evolution.Client satisfies it; a nil value means the
// gateway is unconfigured and dependent endpoints answer with a clean error.
type MessagingGateway interface {
	services.MediaSender
	services.MediaFetcher
	services.GroupDirectory
	services.InstanceDirectory
}

// Deps carries the injected infrastructure for RegisterRoutes. DB and Scraper
// are required; the remaining fields may be nil when the corresponding
// upstream is not configured.
type Deps struct {
	DB      *gorm.DB
	Scraper services.PageScraper
	Gateway MessagingGateway
	Photos  services.PhotoStore
	Parser  services.OfferParser
	Matcher services.ProductMatcher
}

// repoShim adapts the repository free functions to the per-service repo
// interfaces. This keeps services decoupled from the concrete repo package
// while reusing existing functions.
type repoShim struct{}

func (repoShim) InsertMessageDedup(ctx context.Context, db *gorm.DB, m *domain.Message) (bool, error) {
	return repo.InsertMessageDedup(ctx, db, m)
}

func (repoShim) GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	return repo.GetMessage(ctx, db, id)
}

func (repoShim) CreateOffer(ctx context.Context, db *gorm.DB, o *domain.Offer) error {
	return repo.CreateOffer(ctx, db, o)
}

func (repoShim) GetOffer(ctx context.Context, db *gorm.DB, id string) (*domain.Offer, error) {
	return repo.GetOffer(ctx, db, id)
}

func (repoShim) SetOfferStatus(ctx context.Context, db *gorm.DB, id string, status domain.OfferStatus) error {
	return repo.SetOfferStatus(ctx, db, id, status)
}

func (repoShim) UpdateOfferEnrichment(ctx context.Context, db *gorm.DB, id, officialName, cleanLink, marketplaceProductID string) error {
	return repo.UpdateOfferEnrichment(ctx, db, id, officialName, cleanLink, marketplaceProductID)
}

func (repoShim) GetCouponsByCodes(ctx context.Context, db *gorm.DB, codes []string) ([]domain.Coupon, error) {
	return repo.GetCouponsByCodes(ctx, db, codes)
}

func (repoShim) RegisterCouponsPending(ctx context.Context, db *gorm.DB, codes []string) error {
	return repo.RegisterCouponsPending(ctx, db, codes)
}

func (repoShim) SetCouponStatus(ctx context.Context, db *gorm.DB, code, status string) error {
	return repo.SetCouponStatus(ctx, db, code, status)
}

func (repoShim) DeleteCoupon(ctx context.Context, db *gorm.DB, code string) error {
	return repo.DeleteCoupon(ctx, db, code)
}

func (repoShim) ListCouponsByStatus(ctx context.Context, db *gorm.DB, status string) ([]domain.Coupon, error) {
	return repo.ListCouponsByStatus(ctx, db, status)
}

func (repoShim) CreateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	return repo.CreateProduct(ctx, db, p)
}

func (repoShim) GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	return repo.GetProduct(ctx, db, id)
}

func (repoShim) FindProductByOfficialName(ctx context.Context, db *gorm.DB, officialName string) (*domain.Product, error) {
	return repo.FindProductByOfficialName(ctx, db, officialName)
}

func (repoShim) ListProductNames(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListProductNames(ctx, db)
}

func (repoShim) ListProducts(ctx context.Context, db *gorm.DB, active *bool) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db, active)
}

func (repoShim) UpdateProductPhoto(ctx context.Context, db *gorm.DB, id, photoURL, storagePath, mimetype string) error {
	return repo.UpdateProductPhoto(ctx, db, id, photoURL, storagePath, mimetype)
}

func (repoShim) CreateMarketplaceLink(ctx context.Context, db *gorm.DB, l *domain.MarketplaceLink) error {
	return repo.CreateMarketplaceLink(ctx, db, l)
}

func (repoShim) FindActiveLink(ctx context.Context, db *gorm.DB, marketplace, marketplaceProductID string) (*domain.MarketplaceLink, error) {
	return repo.FindActiveLink(ctx, db, marketplace, marketplaceProductID)
}

func (repoShim) ListMarketplaceLinks(ctx context.Context, db *gorm.DB, marketplace string) ([]domain.MarketplaceLink, error) {
	return repo.ListMarketplaceLinks(ctx, db, marketplace)
}

func (repoShim) SetLinkActive(ctx context.Context, db *gorm.DB, id string, active bool) error {
	return repo.SetLinkActive(ctx, db, id, active)
}

func (repoShim) ListDistinctMarketplaces(ctx context.Context, db *gorm.DB) ([]string, error) {
	return repo.ListDistinctMarketplaces(ctx, db)
}

func (repoShim) CreateQueueItemDedup(ctx context.Context, db *gorm.DB, item *domain.QueueItem) (bool, error) {
	return repo.CreateQueueItemDedup(ctx, db, item)
}

func (repoShim) FindPendingQueueItem(ctx context.Context, db *gorm.DB, marketplace, marketplaceProductID string) (*domain.QueueItem, error) {
	return repo.FindPendingQueueItem(ctx, db, marketplace, marketplaceProductID)
}

func (repoShim) SetQueueItemProduct(ctx context.Context, db *gorm.DB, id, productID string) error {
	return repo.SetQueueItemProduct(ctx, db, id, productID)
}

func (repoShim) ConcludeQueueItem(ctx context.Context, db *gorm.DB, id, productID string) error {
	return repo.ConcludeQueueItem(ctx, db, id, productID)
}

func (repoShim) ListQueueItems(ctx context.Context, db *gorm.DB, status string, limit, offset int) ([]domain.QueueItem, error) {
	return repo.ListQueueItems(ctx, db, status, limit, offset)
}

func (repoShim) SuggestProductForPending(ctx context.Context, db *gorm.DB, productID, officialName string) (int64, error) {
	return repo.SuggestProductForPending(ctx, db, productID, officialName)
}

func (repoShim) ListActiveTemplates(ctx context.Context, db *gorm.DB, marketplace, offerType string) ([]domain.Template, error) {
	return repo.ListActiveTemplates(ctx, db, marketplace, offerType)
}

// ListTemplates converts the service-level filter to the repo filter.
func (repoShim) ListTemplates(ctx context.Context, db *gorm.DB, f services.TemplateListFilter) ([]domain.Template, error) {
	return repo.ListTemplates(ctx, db, repo.TemplateFilter{
		Marketplace: f.Marketplace,
		OfferType:   f.OfferType,
		Active:      f.Active,
	})
}

func (repoShim) CreateTemplate(ctx context.Context, db *gorm.DB, t *domain.Template) error {
	return repo.CreateTemplate(ctx, db, t)
}

func (repoShim) UpdateTemplate(ctx context.Context, db *gorm.DB, id, name, body string, active *bool) error {
	return repo.UpdateTemplate(ctx, db, id, name, body, active)
}

func (repoShim) UpsertGroup(ctx context.Context, db *gorm.DB, g *domain.Group) error {
	return repo.UpsertGroup(ctx, db, g)
}

func (repoShim) SetGroupActive(ctx context.Context, db *gorm.DB, instanceID, groupID string, active bool) error {
	return repo.SetGroupActive(ctx, db, instanceID, groupID, active)
}

// ListGroups converts the service-level filter to the repo filter.
func (repoShim) ListGroups(ctx context.Context, db *gorm.DB, f services.GroupListFilter) ([]domain.Group, error) {
	return repo.ListGroups(ctx, db, repo.GroupFilter{
		InstanceID: f.InstanceID,
		Active:     f.Active,
	})
}

func (repoShim) ListActiveGroupIDs(ctx context.Context, db *gorm.DB, instanceID string) ([]string, error) {
	return repo.ListActiveGroupIDs(ctx, db, instanceID)
}

func (repoShim) UpsertInstance(ctx context.Context, db *gorm.DB, inst *domain.Instance) error {
	return repo.UpsertInstance(ctx, db, inst)
}

func (repoShim) GetInstance(ctx context.Context, db *gorm.DB, instanceID string) (*domain.Instance, error) {
	return repo.GetInstance(ctx, db, instanceID)
}

func (repoShim) FindInstance(ctx context.Context, db *gorm.DB, idOrName string) (*domain.Instance, error) {
	return repo.FindInstance(ctx, db, idOrName)
}

func (repoShim) ListInstances(ctx context.Context, db *gorm.DB) ([]domain.Instance, error) {
	return repo.ListInstances(ctx, db)
}

func (repoShim) CreateDispatchRecord(ctx context.Context, db *gorm.DB, r *domain.DispatchRecord) error {
	return repo.CreateDispatchRecord(ctx, db, r)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the public API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with credential scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter and response compression
//  6. Metrics
//  7. Rate limiter (per IP)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging; the built-in mask set covers the gateway's
	// apikey header and webhook secrets.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit and gzip compression. Webhook deliveries
	// carry media as URLs, so 1 MiB is generous.
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Dependency injection: services ← repo/db/upstreams
	shim := repoShim{}
	db := deps.DB

	tmplSvc := services.NewTemplateService(db, shim)
	ingestSvc := services.NewIngestService(db, shim, deps.Parser)
	pipeSvc := services.NewPipelineService(db, shim, deps.Matcher, deps.Gateway, deps.Photos)
	if cfg.SimilarityThreshold > 0 {
		pipeSvc.SimilarityThreshold = cfg.SimilarityThreshold
	}
	dispatchSvc := services.NewDispatchService(db, shim, tmplSvc, deps.Gateway)
	scrapeSvc := services.NewScrapeService(db, shim, deps.Scraper)
	couponSvc := services.NewCouponService(db, shim)
	queueSvc := services.NewQueueService(db, shim)
	productSvc := services.NewProductService(db, shim)
	groupSvc := services.NewGroupService(db, shim, deps.Gateway)
	instSvc := services.NewInstanceService(db, shim, deps.Gateway)

	h := handlers.New(ingestSvc, pipeSvc, dispatchSvc, scrapeSvc,
		couponSvc, queueSvc, productSvc, tmplSvc, groupSvc, instSvc)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Liveness and ingestion
		api.GET("/health", h.Health)
		api.POST("/webhook", h.Webhook)

		// Pipeline
		api.POST("/pipeline/oferta/processar", h.ProcessOffer)
		api.POST("/pipeline/produto/decisao", h.ProcessDecision)

		// Dispatch
		api.POST("/dispatcher/enviar", h.Dispatch)

		// Scraping
		api.POST("/scrape/mercadolivre", h.ScrapeLink)
		api.POST("/scrape/mercadolivre/oferta", h.ScrapeOffer)

		// Coupons
		api.GET("/cupons", h.ListCoupons)
		api.POST("/cupons/aprovar", h.ApproveCoupon)
		api.POST("/cupons/bloquear", h.BlockCoupon)
		api.POST("/cupons/pendente", h.PendCoupon)
		api.POST("/cupons/remover", h.RemoveCoupon)

		// Manual confirmation queue
		api.GET("/fila/produto", h.ListQueue)
		api.POST("/fila/produto/confirmar", h.ConfirmQueue)

		// Products
		api.POST("/produtos/criar", h.CreateProduct)
		api.GET("/produtos", h.ListProducts)
		api.GET("/produtos/links", h.ListLinks)
		api.POST("/produtos/links/ativar", h.ActivateLink)
		api.GET("/produtos/marketplaces", h.ListMarketplaces)

		// Templates
		api.GET("/templates", h.ListTemplates)
		api.POST("/templates", h.CreateTemplate)
		api.POST("/templates/atualizar", h.UpdateTemplate)
		api.POST("/templates/render", h.RenderTemplate)

		// Groups and instances
		api.POST("/grupos/sync", h.SyncGroups)
		api.POST("/grupos/ativar", h.ActivateGroup)
		api.GET("/grupos", h.ListGroups)
		api.POST("/instancias/sync", h.SyncInstances)
		api.GET("/instancias", h.ListInstances)
	}

	// Swagger UI (off by default)
	if cfg.SwaggerEnabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
