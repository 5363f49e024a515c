// Package extractor turns raw product pages into snapshots using a site's
// extraction rules.
package extractor

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/registry"
)

// imageAttrs are tried in order when an image selector hits an element.
// Lazy-loaded images stash the real URL in data attributes.
var imageAttrs = []string{"src", "data-src", "data-lazy", "data-original"}

// Extract pulls product fields out of html according to the site's rules.
// Sites that prefer structured data get the JSON-LD strategy first, with
// the selector lists as fallback when no block yielded a single field.
// Extraction never fails hard: unparseable pages and missing fields just
// leave snapshot fields unset.
func Extract(html string, site registry.SiteConfig) models.Snapshot {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Debug("html parse failed", slog.String("site", site.Name), slog.Any("error", err))
		return models.Snapshot{}
	}

	if site.UseStructuredData {
		if snap := extractStructured(doc, site.StructuredType); !snap.IsEmpty() {
			return snap
		}
	}
	return extractSelectors(doc, site.Selectors)
}

func extractSelectors(doc *goquery.Document, sel registry.Selectors) models.Snapshot {
	var snap models.Snapshot
	snap.Name = textField(doc, sel.Name)
	if price, ok := parsePrice(textField(doc, sel.Price)); ok {
		snap.Price = &price
	}
	snap.Currency = textField(doc, sel.Currency)
	snap.Availability = mapAvailability(textField(doc, sel.Availability))
	snap.Image = imageField(doc, sel.Image)
	snap.SKU = textField(doc, sel.SKU)
	snap.Brand = textField(doc, sel.Brand)
	snap.Description = textField(doc, sel.Description)
	return snap
}

// textField returns the first selector's usable content, in list order.
func textField(doc *goquery.Document, selectors []string) string {
	for _, css := range selectors {
		sel := doc.Find(css).First()
		if sel.Length() == 0 {
			continue
		}
		if v := nodeValue(sel); v != "" {
			return v
		}
	}
	return ""
}

// nodeValue reads an element's content. Elements carrying a content
// attribute (meta tags, microdata spans) contribute that, link elements
// their href, everything else its trimmed text.
func nodeValue(sel *goquery.Selection) string {
	if content, ok := sel.Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	if goquery.NodeName(sel) == "link" {
		return strings.TrimSpace(sel.AttrOr("href", ""))
	}
	return strings.TrimSpace(sel.Text())
}

func imageField(doc *goquery.Document, selectors []string) string {
	for _, css := range selectors {
		sel := doc.Find(css).First()
		if sel.Length() == 0 {
			continue
		}
		if goquery.NodeName(sel) == "meta" {
			if content := strings.TrimSpace(sel.AttrOr("content", "")); content != "" {
				return content
			}
			continue
		}
		for _, attr := range imageAttrs {
			if v := strings.TrimSpace(sel.AttrOr(attr, "")); v != "" {
				return v
			}
		}
	}
	return ""
}

// parsePrice extracts a float from arbitrary price text. Everything except
// digits and dots is dropped first, so "₹1,299.00" and "Rs. 1299" both
// parse. Text that still does not parse leaves the price unset.
func parsePrice(text string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return 0, false
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, false
	}
	return val, true
}

// mapAvailability normalizes schema.org availability values and common
// storefront phrasing to the tracker's states. Both the URL form
// (https://schema.org/InStock) and bare tokens appear in the wild.
// Unknown values map to empty.
func mapAvailability(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return ""
	}
	if strings.Contains(v, "schema.org/") {
		v = v[strings.LastIndex(v, "/")+1:]
	}

	switch {
	case strings.Contains(v, "preorder"), strings.Contains(v, "pre-order"), strings.Contains(v, "backorder"):
		return models.AvailabilityPreOrder
	case strings.Contains(v, "limited"):
		return models.AvailabilityLimitedStock
	case strings.Contains(v, "outofstock"), strings.Contains(v, "soldout"), strings.Contains(v, "discontinued"):
		return models.AvailabilityOutOfStock
	case strings.Contains(v, "out of stock"), strings.Contains(v, "sold out"), strings.Contains(v, "unavailable"):
		return models.AvailabilityOutOfStock
	case strings.Contains(v, "instock"), strings.Contains(v, "instoreonly"), strings.Contains(v, "onlineonly"):
		return models.AvailabilityInStock
	case strings.Contains(v, "in stock"), strings.Contains(v, "available"):
		return models.AvailabilityInStock
	}
	return ""
}
