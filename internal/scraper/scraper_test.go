package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const goodCard = `![Image 5: Fritadeira Air Fryer 4L](https://http2.mlstatic.com/D_12345-MLB.jpg)

[Fritadeira Air Fryer 4L Preta](https://www.mercadolivre.com.br/p/MLB123456?pdp_filters=x#position)

MAIS VENDIDO

R$ 299,90 no Pix

[Ir para produto](https://www.mercadolivre.com.br/p/MLB123456)`

func TestCutPrimaryBlockAnchored(t *testing.T) {
	page := strings.Repeat("header filler\n", 20) + goodCard + "\nfooter"
	got := CutPrimaryBlock(page)
	if got == "" {
		t.Fatal("no block found")
	}
	if !strings.HasPrefix(got, "![Image") {
		t.Errorf("block does not start at the last image tag: %q", got[:40])
	}
	if !strings.Contains(got, "[Ir para produto]") {
		t.Error("block lost the CTA")
	}
	if strings.Contains(got, "footer") {
		t.Error("block ran past the CTA closing paren")
	}
}

func TestCutPrimaryBlockFallback(t *testing.T) {
	// No CTA anchor: the fallback scans image-delimited segments.
	card := "![Image 2: x](https://http2.mlstatic.com/D_1.jpg) produto em mercadolivre.com.br por R$ 199,90 MAIS VENDIDO [link](https://www.mercadolivre.com.br/p/MLB1)"
	page := "intro text\n" + card
	got := CutPrimaryBlock(page)
	if got == "" {
		t.Fatal("fallback found no block")
	}
	if !strings.HasPrefix(got, "![Image") {
		t.Errorf("unexpected block start: %q", got)
	}
}

func TestCutPrimaryBlockNone(t *testing.T) {
	if got := CutPrimaryBlock("plain page with nothing useful"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestValidateBlockApproved(t *testing.T) {
	v := ValidateBlock(goodCard)
	if !v.Approved {
		t.Fatalf("not approved, reasons: %v", v.Reasons)
	}
	if v.CatalogID != "MLB123456" {
		t.Errorf("CatalogID = %q, want MLB123456", v.CatalogID)
	}
	if v.CTACatalogID != "MLB123456" {
		t.Errorf("CTACatalogID = %q, want MLB123456", v.CTACatalogID)
	}
	if v.Motive() != "" {
		t.Errorf("Motive = %q, want empty for approved card", v.Motive())
	}
}

func TestValidateBlockRejections(t *testing.T) {
	tests := []struct {
		name   string
		block  string
		reason string
	}{
		{
			"list page",
			"Perfil social\nminhas listas\n" + goodCard,
			"pagina_lista_ou_perfil",
		},
		{
			"no image",
			"[Fritadeira](https://www.mercadolivre.com.br/p/MLB123456)\nR$ 299,90\n[Ir para produto](https://www.mercadolivre.com.br/p/MLB123456)",
			"sem_imagem_markdown",
		},
		{
			"image not mlstatic",
			strings.ReplaceAll(goodCard, "http2.mlstatic.com", "cdn.example.com"),
			"sem_imagem_mlstatic",
		},
		{
			"no price",
			strings.ReplaceAll(goodCard, "R$ 299,90 no Pix", "preco indisponivel"),
			"sem_preco",
		},
		{
			"no cta",
			strings.ReplaceAll(goodCard, "[Ir para produto](https://www.mercadolivre.com.br/p/MLB123456)", ""),
			"sem_cta_ir_para_produto",
		},
		{
			"foreign link",
			goodCard + "\n[oferta](https://www.example.com/p/1)",
			"link_nao_permitido_no_bloco",
		},
		{
			"two catalog ids",
			goodCard + "\n[outro](https://www.mercadolivre.com.br/p/MLB999999)",
			"mais_de_um_catalog_id_no_bloco",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateBlock(tt.block)
			if v.Approved {
				t.Fatal("approved, want rejection")
			}
			found := false
			for _, r := range v.Reasons {
				if r == tt.reason {
					found = true
				}
			}
			if !found {
				t.Errorf("reasons %v missing %q", v.Reasons, tt.reason)
			}
		})
	}
}

func TestValidateBlockCTAMismatch(t *testing.T) {
	card := `![Image 1: x](https://http2.mlstatic.com/D_1.jpg)
[Produto A](https://www.mercadolivre.com.br/p/MLB111111)
R$ 100,00
[Ir para produto](https://www.mercadolivre.com.br/p/MLB222222)`
	v := ValidateBlock(card)
	if v.Approved {
		t.Fatal("approved, want rejection")
	}
	joined := v.Motive()
	// The CTA link itself contributes a second catalog id to the block.
	if !strings.Contains(joined, "mais_de_um_catalog_id_no_bloco") {
		t.Errorf("motive %q missing multi-catalog code", joined)
	}
}

func TestSanitizeBlock(t *testing.T) {
	got := SanitizeBlock(goodCard)
	if strings.Contains(got, "mlstatic.com") {
		t.Error("image target survived sanitization")
	}
	if !strings.Contains(got, "![Image 5: Fritadeira Air Fryer 4L]") {
		t.Error("image alt text lost")
	}
	if !strings.Contains(got, "[Fritadeira Air Fryer 4L Preta]") {
		t.Error("card anchor text lost")
	}
	if !strings.Contains(got, "[Ir para produto](https://www.mercadolivre.com.br/p/MLB123456)") {
		t.Error("CTA link must keep its target")
	}
}

func TestExtractDataFromBlock(t *testing.T) {
	sanitized := SanitizeBlock(goodCard)
	got := ExtractDataFromBlock(goodCard, sanitized)
	if got.Title != "Fritadeira Air Fryer 4L Preta" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.BaseURL != "https://www.mercadolivre.com.br/p/MLB123456" {
		t.Errorf("BaseURL = %q, want query and fragment stripped", got.BaseURL)
	}
	if got.CatalogID != "MLB123456" {
		t.Errorf("CatalogID = %q", got.CatalogID)
	}
}

func TestCatalogIDFromURLVariants(t *testing.T) {
	tests := []struct{ url, want string }{
		{"https://www.mercadolivre.com.br/p/MLB123456", "MLB123456"},
		{"https://www.mercadolivre.com.br/up/MLBU789", "MLBU789"},
		{"https://produto.mercadolivre.com.br/MLB-1234567890-fritadeira", "MLB-1234567890"},
		{"https://www.mercadolivre.com.br/item/MLB7654321", "MLB7654321"},
		{"https://www.mercadolivre.com.br/no-id-here", ""},
	}
	for _, tt := range tests {
		if got := catalogIDFromURL(tt.url); got != tt.want {
			t.Errorf("catalogIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("page header\n" + goodCard + "\nfooter"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.Client())
	res, err := c.Scrape(context.Background(), "www.mercadolivre.com.br/p/MLB123456")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if !res.OK {
		t.Fatalf("not OK, reasons: %v", res.Validation.Reasons)
	}
	if res.Data.CatalogID != "MLB123456" {
		t.Errorf("CatalogID = %q", res.Data.CatalogID)
	}
}

func TestScrapeNoBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("nothing that looks like a product card"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.Client())
	if _, err := c.Scrape(context.Background(), "x"); err != ErrBlockNotFound {
		t.Errorf("err = %v, want ErrBlockNotFound", err)
	}
}

func TestScrapeProxyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.Client())
	if _, err := c.Scrape(context.Background(), "x"); err == nil {
		t.Error("expected transport error")
	}
}
