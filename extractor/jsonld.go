package extractor

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-price-tracker/models"
)

// productLD mirrors the schema.org Product shape found in JSON-LD blocks.
// Fields whose type varies in the wild (price string or number, offers
// object or array, brand string or object) stay raw until decoded.
type productLD struct {
	Type        string          `json:"@type"`
	Name        string          `json:"name"`
	Image       json.RawMessage `json:"image"`
	Description string          `json:"description"`
	SKU         string          `json:"sku"`
	MPN         string          `json:"mpn"`
	Brand       json.RawMessage `json:"brand"`
	Offers      json.RawMessage `json:"offers"`
}

type offerLD struct {
	Type          string          `json:"@type"`
	Price         json.RawMessage `json:"price"`
	PriceCurrency string          `json:"priceCurrency"`
	Availability  string          `json:"availability"`
	URL           string          `json:"url"`
}

// extractStructured walks every JSON-LD script block and returns the first
// snapshot built from a block matching targetType (empty accepts any).
// Blocks that fail to parse are skipped.
func extractStructured(doc *goquery.Document, targetType string) models.Snapshot {
	var snap models.Snapshot
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}
		for _, ld := range decodeBlocks(raw) {
			if targetType != "" && !strings.EqualFold(ld.Type, targetType) {
				continue
			}
			if s, ok := snapshotFromLD(ld); ok {
				snap = s
				return false
			}
		}
		return true
	})
	return snap
}

// decodeBlocks tolerates both an object and an array at the top level.
func decodeBlocks(raw string) []productLD {
	data := []byte(raw)

	var one productLD
	if err := json.Unmarshal(data, &one); err == nil {
		return []productLD{one}
	}
	var many []productLD
	if err := json.Unmarshal(data, &many); err == nil {
		return many
	}

	slog.Debug("structured data block skipped", slog.Int("bytes", len(data)))
	return nil
}

func snapshotFromLD(ld productLD) (models.Snapshot, bool) {
	snap := models.Snapshot{
		Name:        strings.TrimSpace(ld.Name),
		Description: strings.TrimSpace(ld.Description),
		SKU:         strings.TrimSpace(ld.SKU),
		MPN:         strings.TrimSpace(ld.MPN),
		Brand:       brandName(ld.Brand),
		Image:       firstImage(ld.Image),
	}

	if offer, ok := firstOffer(ld.Offers); ok {
		if price, ok := parseRawPrice(offer.Price); ok {
			snap.Price = &price
		}
		snap.Currency = strings.TrimSpace(offer.PriceCurrency)
		snap.Availability = mapAvailability(offer.Availability)
	}

	return snap, !snap.IsEmpty()
}

func firstOffer(raw json.RawMessage) (offerLD, bool) {
	if len(raw) == 0 {
		return offerLD{}, false
	}
	var one offerLD
	if err := json.Unmarshal(raw, &one); err == nil {
		return one, true
	}
	var many []offerLD
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0], true
	}
	return offerLD{}, false
}

// parseRawPrice handles the price appearing as either a JSON string or a
// bare number.
func parseRawPrice(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	return parsePrice(strings.Trim(s, `"'`))
}

func brandName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Name)
	}
	return ""
}

func firstImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return strings.TrimSpace(arr[0])
	}
	return ""
}
