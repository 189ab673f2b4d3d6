// Package extract implements the deterministic offer extractor: a pure
// function over promotional message text. A message is split into
// blank-line-delimited blocks (multi-offer support); each block yields a
// title, the lowest Pix-preferred final price, coupon codes, a free-text
// offer body, and the first marketplace link. A block is "confident"
// (Status=true) only when link, title and (price or body) are all present;
// when no block is confident the whole text is retried as a single block and
// returned regardless, signalling that the semantic fallback should run.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Offer is the structured result of parsing one message block.
type Offer struct {
	// Status reports whether the block is confident enough to proceed
	// without the semantic fallback.
	Status bool `json:"status"`
	// Name is the product title, empty when none was found.
	Name string `json:"nome"`
	// Price is the final sale price, nil when none was found.
	Price *float64 `json:"valor"`
	// Coupons are the normalized (uppercase) coupon codes, possibly empty.
	Coupons []string `json:"cupons"`
	// Body is the newline-joined set of retained price/coupon lines.
	Body string `json:"oferta"`
	// Link is the first marketplace URL in the block.
	Link string `json:"link"`
}

const heroEmoji = "\U0001F9B8\U0001F3FB‍♂️" // decorative marker some source groups prepend

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	blockSplitRE = regexp.MustCompile(`\n{2,}`)

	leadingMarkersRE  = regexp.MustCompile(`^[*_~>\-–•\s]+`)
	trailingMarkersRE = regexp.MustCompile(`[*_~\s]+$`)

	urlRE     = regexp.MustCompile(`(?i)https?://[^\s]+`)
	mlLinkRE  = regexp.MustCompile(`(?i)https?://[^\s]*mercadolivre\.com[^\s]*`)
	priceHint = regexp.MustCompile(`(?i)(\bde\b|\bpor\b|\$)\s*\d`)

	couponCueRE   = regexp.MustCompile(`(?i)(cupom|codigo|use o cupom)`)
	couponNoiseRE = regexp.MustCompile(`(?i)(%\s*off|off\b|cupom no anuncio|ja aplicado|ative abaixo do produto)`)
	noCouponRE    = regexp.MustCompile(`(?i)sem\s+cupom`)
	couponTokenRE = regexp.MustCompile(`[A-Z0-9_-]{4,20}`)

	dePorRE    = regexp.MustCompile(`(?i)de\s+([^\s]+)\s+por\s+([^\s]+)`)
	porPriceRE = regexp.MustCompile(`(?i)\bpor\b\s*(r\$)?\s*([\d.,]+)`)
	rawPriceRE = regexp.MustCompile(`(?i)r\$\s*[\d.,]+`)
	offNoiseRE = regexp.MustCompile(`%\s*off|off\b`)
	pixRE      = regexp.MustCompile(`(?i)pix`)

	numericRE = regexp.MustCompile(`[^\d.,]`)
)

// foldAccents strips combining marks so cue-word matching survives the usual
// pt-BR spelling variants (código/codigo, anúncio/anuncio).
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func toASCII(s string) string {
	out, _, err := transform.String(foldAccents, s)
	if err != nil {
		return s
	}
	return out
}

func normalizeLine(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}

func extractLines(text string) []string {
	if text == "" {
		return nil
	}
	raw := strings.Split(strings.ReplaceAll(text, heroEmoji, ""), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if n := normalizeLine(strings.TrimSuffix(l, "\r")); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func stripMarkers(line string) string {
	line = leadingMarkersRE.ReplaceAllString(line, "")
	line = trailingMarkersRE.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

func isPriceLine(line string) bool { return priceHint.MatchString(line) }

func hasURL(line string) bool { return urlRE.MatchString(line) }

// ParsePrice converts a pt-BR or en-US formatted price fragment into a
// number. The rightmost separator decides which one is decimal:
// "1.234,56" -> 1234.56, "1,234.56" -> 1234.56, "2500" -> 2500.
func ParsePrice(raw string) *float64 {
	cleaned := numericRE.ReplaceAllString(raw, "")
	if cleaned == "" {
		return nil
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	normalized := cleaned
	switch {
	case lastComma > -1 && lastDot > -1:
		if lastComma > lastDot {
			normalized = strings.ReplaceAll(cleaned, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma > -1:
		normalized = strings.ReplaceAll(cleaned, ".", "")
		normalized = strings.Replace(normalized, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return nil
	}
	return &v
}

// MarketplaceLink returns the first mercadolivre.com URL in text, or "".
func MarketplaceLink(text string) string {
	return mlLinkRE.FindString(text)
}

func isCouponNoise(line string) bool {
	return couponNoiseRE.MatchString(toASCII(strings.ToLower(line)))
}

func extractCoupons(lines []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range lines {
		folded := toASCII(strings.ToLower(line))
		if !couponCueRE.MatchString(folded) {
			continue
		}
		if isCouponNoise(line) || noCouponRE.MatchString(folded) {
			continue
		}
		for _, code := range couponTokenRE.FindAllString(strings.ToUpper(toASCII(line)), -1) {
			if code == "CUPOM" || code == "CODIGO" {
				continue
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}

func pickTitle(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	first := lines[0]
	isHeadline := len(first) <= 40 && !isPriceLine(first) && !hasURL(first) &&
		!strings.Contains(strings.ToLower(first), "cupom")
	start := 0
	if isHeadline {
		start = 1
	}
	for i := start; i < len(lines); i++ {
		l := stripMarkers(lines[i])
		if l == "" || hasURL(l) || isPriceLine(l) {
			continue
		}
		if strings.Contains(strings.ToLower(l), "cupom") {
			continue
		}
		return l
	}
	return ""
}

type priceCandidate struct {
	value float64
	line  string
	pix   bool
}

// finalPrice picks the final sale price among the block's candidate lines:
// "de X por Y" takes Y, "por R$ Y" takes Y, and a bare "R$ Y" only counts
// when the line mentions Pix. Percentage/parcel/freight lines are noise.
// Pix-tagged candidates win; ties break toward the lowest value.
func finalPrice(lines []string) (*float64, string) {
	var candidates []priceCandidate
	for _, line := range lines {
		lower := strings.ToLower(line)
		if offNoiseRE.MatchString(lower) {
			continue
		}
		if strings.Contains(lower, "parcel") || strings.Contains(lower, "frete") {
			continue
		}

		if m := dePorRE.FindStringSubmatch(line); m != nil {
			if v := ParsePrice(m[2]); v != nil {
				candidates = append(candidates, priceCandidate{*v, line, pixRE.MatchString(line)})
				continue
			}
		}
		if m := porPriceRE.FindStringSubmatch(line); m != nil {
			if v := ParsePrice(m[2]); v != nil {
				candidates = append(candidates, priceCandidate{*v, line, pixRE.MatchString(line)})
				continue
			}
		}
		if m := rawPriceRE.FindString(line); m != "" && pixRE.MatchString(line) {
			if v := ParsePrice(m); v != nil {
				candidates = append(candidates, priceCandidate{*v, line, true})
			}
		}
	}
	if len(candidates) == 0 {
		return nil, ""
	}

	pix := candidates[:0:0]
	for _, c := range candidates {
		if c.pix {
			pix = append(pix, c)
		}
	}
	pool := candidates
	if len(pix) > 0 {
		pool = pix
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].value < pool[j].value })
	return &pool[0].value, pool[0].line
}

// buildBody assembles the free-text offer body: every retained price/coupon
// line, newline-joined, excluding the title and any line carrying a URL.
func buildBody(lines []string, title, priceLine, couponLine string) string {
	var useful []string
	for _, line := range lines {
		if line == title || hasURL(line) {
			continue
		}
		if (priceLine != "" && line == priceLine) || (couponLine != "" && line == couponLine) {
			useful = append(useful, line)
			continue
		}
		if isPriceLine(line) || couponCueRE.MatchString(toASCII(line)) {
			if !isCouponNoise(line) {
				useful = append(useful, line)
			}
		}
	}
	return strings.Join(useful, "\n")
}

func splitBlocks(text string) []string {
	if text == "" {
		return nil
	}
	cleaned := strings.ReplaceAll(strings.ReplaceAll(text, heroEmoji, ""), "\r\n", "\n")
	raw := blockSplitRE.Split(cleaned, -1)
	blocks := make([]string, 0, len(raw))
	for _, b := range raw {
		if t := strings.TrimSpace(b); t != "" {
			blocks = append(blocks, t)
		}
	}
	if len(blocks) == 0 {
		return []string{strings.TrimSpace(cleaned)}
	}
	return blocks
}

// ParseBlock parses a single block of text. fallbackLink is used when the
// block itself carries no marketplace URL (multi-offer messages often put
// the link in only one block).
func ParseBlock(text, fallbackLink string) Offer {
	lines := extractLines(text)
	link := MarketplaceLink(text)
	if link == "" {
		link = fallbackLink
	}
	title := pickTitle(lines)
	price, priceLine := finalPrice(lines)
	coupons := extractCoupons(lines)

	couponLine := ""
	if len(coupons) > 0 {
		for _, l := range lines {
			upper := strings.ToUpper(l)
			for _, c := range coupons {
				if strings.Contains(upper, c) {
					couponLine = l
					break
				}
			}
			if couponLine != "" {
				break
			}
		}
	}

	body := buildBody(lines, title, priceLine, couponLine)

	return Offer{
		Status:  link != "" && title != "" && (price != nil || body != ""),
		Name:    title,
		Price:   price,
		Coupons: coupons,
		Body:    body,
		Link:    link,
	}
}

// ParseOffers runs the deterministic extractor over a whole message. When at
// least one block is confident, only the confident blocks are returned (in
// original order). Otherwise the entire text is re-parsed as one block and
// returned as-is so callers know the semantic fallback is required.
func ParseOffers(text string) []Offer {
	globalLink := MarketplaceLink(text)
	blocks := splitBlocks(text)

	items := make([]Offer, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, ParseBlock(b, globalLink))
	}

	var valid []Offer
	for _, it := range items {
		if it.Status {
			valid = append(valid, it)
		}
	}
	if len(valid) == 0 {
		return []Offer{ParseBlock(text, globalLink)}
	}
	return valid
}
