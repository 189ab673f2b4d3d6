package extract

import "strings"

// MarketplaceUnknown is returned when no known marketplace domain appears in
// the text. Messages tagged with it still flow through the pipeline but skip
// marketplace-specific enrichment.
const MarketplaceUnknown = "desconhecido"

var marketplaceDomains = []struct {
	needle string
	name   string
}{
	{"mercadolivre.com", "mercadolivre"},
	{"mercadolibre.com", "mercadolivre"},
	{"amazon.com", "amazon"},
	{"amzn.to", "amazon"},
	{"shopee.com", "shopee"},
	{"magazineluiza.com", "magalu"},
	{"magazinevoce.com", "magalu"},
	{"magalu", "magalu"},
	{"aliexpress.com", "aliexpress"},
	{"kabum.com", "kabum"},
}

// DetectMarketplace inspects the message text and returns the marketplace
// slug of the first recognized domain plus the first URL found, if any.
func DetectMarketplace(text string) (marketplace, link string) {
	link = urlRE.FindString(text)
	lower := strings.ToLower(text)
	for _, d := range marketplaceDomains {
		if strings.Contains(lower, d.needle) {
			return d.name, link
		}
	}
	return MarketplaceUnknown, link
}
