// Package scraper enriches Mercado Livre product pages through a
// markdown-rendering read proxy. The rendered page is cut down to the primary
// product card, validated against a strict set of structural checks, and
// mined for the product title, canonical URL and catalog id.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultReadProxyBase = "https://r.jina.ai/http://"
	ctaAnchor            = "[Ir para produto]"
	backwardWindow       = 2000
)

// ErrBlockNotFound means the rendered page had no recognizable product card.
var ErrBlockNotFound = errors.New("scraper: primary block not found")

// Validation is the outcome of the structural checks on a product card.
// Reasons carries one stable code per failed check, empty when approved.
type Validation struct {
	Approved        bool     `json:"aprovado"`
	Reasons         []string `json:"motivos,omitempty"`
	CatalogID       string   `json:"catalog_id,omitempty"`
	CTACatalogID    string   `json:"cta_catalog_id,omitempty"`
	ImageCount      int      `json:"images_count"`
	LinkCount       int      `json:"links_count"`
	AllowedLinks    int      `json:"allowed_product_links_count"`
	DisallowedLinks int      `json:"disallowed_links_count"`
}

// Motive joins the failure reason codes the way they are persisted.
func (v Validation) Motive() string { return strings.Join(v.Reasons, "|") }

// BlockData is the product information mined from an approved card.
type BlockData struct {
	Title     string `json:"titulo"`
	BaseURL   string `json:"url_base"`
	CatalogID string `json:"catalogo_id"`
}

// Result is the full outcome of scraping one product link.
type Result struct {
	OK         bool       `json:"ok"`
	Validation Validation `json:"validacao"`
	BlockRaw   string     `json:"bloco_raw"`
	Block      string     `json:"bloco"`
	Data       BlockData  `json:"dados"`
}

var (
	ctaRE      = regexp.MustCompile(`(?i)\[Ir para produto\]\(\s*([^) \n]+)\s*\)`)
	imgRE      = regexp.MustCompile(`(?i)!\[[^\]]*\]\(\s*([^) \n]+)\s*\)`)
	linkRE     = regexp.MustCompile(`(?i)\[[^\]]+\]\(\s*([^) \n]+)\s*\)`)
	cardLinkRE = regexp.MustCompile(`(?i)\[([^\]]+)\]\(\s*(https?://[^)\s]+)\s*\)`)
	bracketRE  = regexp.MustCompile(`\[([^\]]+)\]`)
	priceRE    = regexp.MustCompile(`(?i)R\$\s*\d{1,3}(?:\.\d{3})*(?:[.,]\d{2})?`)
	ctaTextRE  = regexp.MustCompile(`(?i)^\s*Ir\s+para\s+produto\s*$`)
	mlstaticRE = regexp.MustCompile(`(?i)mlstatic`)

	trailingPunctRE = regexp.MustCompile(`[)\],.]+$`)
	urlPartsRE      = regexp.MustCompile(`(?i)^https?://([^/?#]+)(/[^?#]*)?`)

	imgSanitizeRE = regexp.MustCompile(`!\[([^\]]*)\]\(\s*([^)]+?)\s*\)`)

	// catalog id grammar on the URL path, validation form (no dash)
	catDashRE = regexp.MustCompile(`(?i)/(MLB)-(\d{6,})`)
	catBareRE = regexp.MustCompile(`(?i)/(MLB\d{6,})`)
	catPRE    = regexp.MustCompile(`(?i)/p/(MLB\d+)`)
	catUpRE   = regexp.MustCompile(`(?i)/up/(MLBU\d+)`)

	// extraction form (dash preserved, word-bounded)
	extPRE    = regexp.MustCompile(`(?i)/p/(MLB[A-Z0-9]+)\b`)
	extUpRE   = regexp.MustCompile(`(?i)/up/(MLBU\d+)\b`)
	extBareRE = regexp.MustCompile(`(?i)/(MLB\d{6,})\b`)
)

var listOrProfileCues = []string{
	"perfil social",
	"minhas listas",
	"minhas recomendacoes",
	"ir para a lista",
	"/social/minutoreview/lists",
	"compartilhar",
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func toASCII(s string) string {
	out, _, err := transform.String(foldAccents, s)
	if err != nil {
		return s
	}
	return out
}

func normalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = trailingPunctRE.ReplaceAllString(u, "")
	u = strings.Trim(u, `"'`)
	if strings.HasPrefix(strings.ToLower(u), "www.") {
		u = "https://" + u
	}
	return u
}

type urlParts struct {
	url  string
	host string
	path string
}

func parseURLParts(raw string) (urlParts, bool) {
	s := normalizeURL(raw)
	if s == "" {
		return urlParts{}, false
	}
	m := urlPartsRE.FindStringSubmatch(s)
	if m == nil {
		return urlParts{}, false
	}
	path := m[2]
	if path == "" {
		path = "/"
	}
	return urlParts{url: s, host: strings.ToLower(m[1]), path: path}, true
}

func isMercadoLivreHost(host string) bool {
	h := strings.ToLower(host)
	return h == "mercadolivre.com" || strings.HasSuffix(h, ".mercadolivre.com") ||
		h == "mercadolivre.com.br" || strings.HasSuffix(h, ".mercadolivre.com.br")
}

// catalogFromPath returns the catalog id in validation form: dashes removed,
// uppercase. Empty when the path carries none.
func catalogFromPath(path string) string {
	if m := catDashRE.FindStringSubmatch(path); m != nil {
		return strings.ToUpper(m[1] + m[2])
	}
	if m := catBareRE.FindStringSubmatch(path); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := catPRE.FindStringSubmatch(path); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := catUpRE.FindStringSubmatch(path); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

func findCTAURL(md string) string {
	if m := ctaRE.FindStringSubmatch(md); m != nil {
		return normalizeURL(m[1])
	}
	return ""
}

// markdownURLs collects the deduplicated image and link targets of a
// markdown fragment. Image tags are excluded from the link set.
func markdownURLs(md string) (images, links []string) {
	seenImg := make(map[string]struct{})
	for _, m := range imgRE.FindAllStringSubmatch(md, -1) {
		if u := normalizeURL(m[1]); u != "" {
			if _, dup := seenImg[u]; !dup {
				seenImg[u] = struct{}{}
				images = append(images, u)
			}
		}
	}
	seenLink := make(map[string]struct{})
	for _, idx := range linkRE.FindAllStringSubmatchIndex(md, -1) {
		if idx[0] > 0 && md[idx[0]-1] == '!' {
			continue
		}
		if u := normalizeURL(md[idx[2]:idx[3]]); u != "" {
			if _, dup := seenLink[u]; !dup {
				seenLink[u] = struct{}{}
				links = append(links, u)
			}
		}
	}
	return images, links
}

func isListOrProfileContent(text string) bool {
	t := strings.ToLower(toASCII(text))
	for _, cue := range listOrProfileCues {
		if strings.Contains(t, cue) {
			return true
		}
	}
	return false
}

// SanitizeBlock strips image and link targets from a card, keeping only the
// alt/anchor texts. The CTA link is left intact: downstream extraction needs
// its URL.
func SanitizeBlock(raw string) string {
	t := strings.ReplaceAll(raw, "\r\n", "\n")
	t = imgSanitizeRE.ReplaceAllString(t, "![$1]")
	t = cardLinkRE.ReplaceAllStringFunc(t, func(full string) string {
		m := cardLinkRE.FindStringSubmatch(full)
		if m == nil {
			return full
		}
		if ctaTextRE.MatchString(m[1]) {
			return full
		}
		return "[" + m[1] + "]"
	})
	return t
}

// CutPrimaryBlock isolates the primary product card from the rendered page.
// Preferred path: anchor on the "Ir para produto" CTA and walk back at most
// 2000 characters to the last image tag. Fallback: scan image-delimited
// segments for one that looks like a product card.
func CutPrimaryBlock(fullText string) string {
	if fullText == "" {
		return ""
	}

	if anchor := strings.Index(fullText, ctaAnchor); anchor != -1 {
		end := strings.Index(fullText[anchor:], ")")
		if end != -1 {
			end += anchor + 1
			windowStart := anchor - backwardWindow
			if windowStart < 0 {
				windowStart = 0
			}
			if lastImg := strings.LastIndex(fullText[windowStart:anchor], "![Image"); lastImg != -1 {
				return strings.TrimSpace(fullText[windowStart+lastImg : end])
			}
		}
	}

	for _, part := range strings.Split(fullText, "![Image") {
		candidate := "![Image" + part
		if !strings.Contains(candidate, "mercadolivre.com.br") || !strings.Contains(candidate, "R$") {
			continue
		}
		if !strings.Contains(candidate, "MAIS VENDIDO") && len(candidate) <= 300 {
			continue
		}
		if end := strings.Index(candidate, ")"); end >= 0 {
			return candidate[:end+1]
		}
		return candidate
	}
	return ""
}

// ValidateBlock runs the structural checks that decide whether a card is
// trustworthy enough to source product data: exactly one catalog id, a CTA
// pointing at it, an mlstatic image, a price, and no foreign links.
func ValidateBlock(block string) Validation {
	var v Validation

	if isListOrProfileContent(block) {
		v.Reasons = append(v.Reasons, "pagina_lista_ou_perfil")
	}

	images, links := markdownURLs(block)
	v.ImageCount = len(images)
	v.LinkCount = len(links)
	if len(images) == 0 {
		v.Reasons = append(v.Reasons, "sem_imagem_markdown")
	}

	hasMlstatic := false
	for _, u := range images {
		if mlstaticRE.MatchString(u) {
			hasMlstatic = true
			break
		}
	}
	if !hasMlstatic {
		v.Reasons = append(v.Reasons, "sem_imagem_mlstatic")
	}

	hasPrice := priceRE.MatchString(block)
	if !hasPrice {
		v.Reasons = append(v.Reasons, "sem_preco")
	}

	ctaURL := findCTAURL(block)
	if ctaURL == "" {
		v.Reasons = append(v.Reasons, "sem_cta_ir_para_produto")
	}

	var catalogIDs []string
	seen := make(map[string]struct{})
	disallowed := 0
	for _, raw := range links {
		parts, ok := parseURLParts(raw)
		if !ok || !isMercadoLivreHost(parts.host) {
			disallowed++
			continue
		}
		id := catalogFromPath(parts.path)
		if id == "" {
			disallowed++
			continue
		}
		v.AllowedLinks++
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			catalogIDs = append(catalogIDs, id)
		}
	}
	v.DisallowedLinks = disallowed

	if disallowed > 0 {
		v.Reasons = append(v.Reasons, "link_nao_permitido_no_bloco")
	}
	if len(catalogIDs) == 0 {
		v.Reasons = append(v.Reasons, "sem_catalog_id_no_bloco")
	}
	if len(catalogIDs) > 1 {
		v.Reasons = append(v.Reasons, "mais_de_um_catalog_id_no_bloco")
	}
	if len(catalogIDs) > 0 {
		v.CatalogID = catalogIDs[0]
	}

	ctaOK := false
	if ctaURL != "" {
		ctaParts, ok := parseURLParts(ctaURL)
		if !ok {
			v.Reasons = append(v.Reasons, "cta_url_invalida")
		} else {
			v.CTACatalogID = catalogFromPath(ctaParts.path)
			switch {
			case v.CTACatalogID == "":
				v.Reasons = append(v.Reasons, "cta_nao_aponta_para_catalogo")
			case len(catalogIDs) == 1 && v.CTACatalogID != catalogIDs[0]:
				v.Reasons = append(v.Reasons, "cta_catalog_diferente_do_bloco")
			default:
				ctaOK = true
			}
		}
	}

	v.Approved = !isListOrProfileContent(block) &&
		len(images) > 0 && hasMlstatic && hasPrice &&
		ctaURL != "" && ctaOK &&
		disallowed == 0 && len(catalogIDs) == 1
	return v
}

func decodeSafe(s string) string {
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

func urlBase(u string) string {
	if u == "" {
		return ""
	}
	u = strings.SplitN(u, "#", 2)[0]
	return strings.SplitN(u, "?", 2)[0]
}

// catalogIDFromURL returns the catalog id in extraction form: the dash of
// legacy item paths preserved ("MLB-1234567890"), everything else uppercase.
func catalogIDFromURL(u string) string {
	parts, ok := parseURLParts(urlBase(u))
	if !ok {
		return ""
	}
	path := parts.path
	if m := catDashRE.FindStringSubmatch(path); m != nil {
		return strings.ToUpper(m[1]) + "-" + m[2]
	}
	if m := extPRE.FindStringSubmatch(path); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := extUpRE.FindStringSubmatch(path); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := extBareRE.FindStringSubmatch(path); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

func findCTAURLFull(text string) string {
	if m := ctaRE.FindStringSubmatch(text); m != nil {
		return decodeSafe(m[1])
	}
	return ""
}

// cardTitleAndURL returns the first non-image, non-CTA markdown link of the
// raw card: its anchor text is the product title and its target the card URL.
func cardTitleAndURL(raw string) (title, cardURL string) {
	for _, idx := range cardLinkRE.FindAllStringSubmatchIndex(raw, -1) {
		if idx[0] > 0 && raw[idx[0]-1] == '!' {
			continue
		}
		text := strings.TrimSpace(raw[idx[2]:idx[3]])
		if ctaTextRE.MatchString(text) {
			continue
		}
		return text, decodeSafe(raw[idx[4]:idx[5]])
	}
	return "", ""
}

// titleFallback mines the sanitized card for the first bracketed anchor text
// when the raw card carried no usable link.
func titleFallback(sanitized string) string {
	for _, idx := range bracketRE.FindAllStringSubmatchIndex(sanitized, -1) {
		if idx[0] > 0 && sanitized[idx[0]-1] == '!' {
			continue
		}
		t := strings.TrimSpace(sanitized[idx[2]:idx[3]])
		if t == "" || ctaTextRE.MatchString(t) {
			continue
		}
		return t
	}
	return ""
}

// ExtractDataFromBlock mines an approved card for title, canonical URL and
// catalog id. raw is the card as cut from the page, sanitized the output of
// SanitizeBlock.
func ExtractDataFromBlock(raw, sanitized string) BlockData {
	title, cardURL := cardTitleAndURL(raw)
	if title == "" {
		title = titleFallback(sanitized)
	}

	ctaURL := findCTAURLFull(raw)
	if ctaURL == "" {
		ctaURL = findCTAURLFull(sanitized)
	}
	if cardURL == "" {
		cardURL = ctaURL
	}

	base := urlBase(cardURL)
	return BlockData{
		Title:     title,
		BaseURL:   base,
		CatalogID: catalogIDFromURL(base),
	}
}

// Client fetches product pages through the read proxy and runs the full
// cut/validate/extract pipeline.
type Client struct {
	base  string
	httpc *http.Client
}

// NewClient builds a scraper client. base defaults to the public read proxy;
// httpc defaults to a client with a 60s timeout.
func NewClient(base string, httpc *http.Client) *Client {
	if base == "" {
		base = defaultReadProxyBase
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{base: base, httpc: httpc}
}

// Scrape fetches link through the read proxy and returns the processed
// primary card. ErrBlockNotFound means the page rendered but had no card;
// other errors are transport-level.
func (c *Client) Scrape(ctx context.Context, link string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read proxy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("read proxy: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read proxy body: %w", err)
	}

	block := CutPrimaryBlock(string(body))
	if block == "" {
		return nil, ErrBlockNotFound
	}

	validation := ValidateBlock(block)
	sanitized := SanitizeBlock(block)
	return &Result{
		OK:         validation.Approved,
		Validation: validation,
		BlockRaw:   block,
		Block:      sanitized,
		Data:       ExtractDataFromBlock(block, sanitized),
	}, nil
}
