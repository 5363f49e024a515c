// Package registry maps product-page domains to their extraction rules.
//
// Rules are data, not code: each site carries ordered CSS selector lists per
// field plus a flag for structured-data extraction. The built-in table covers
// the common storefronts and a generic fallback; a JSON file can replace the
// table at runtime.
package registry

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
)

// Selectors holds ordered CSS selector lists per product field. The first
// selector that matches an element with usable content wins.
type Selectors struct {
	Name         []string `json:"name,omitempty"`
	Price        []string `json:"price,omitempty"`
	Currency     []string `json:"currency,omitempty"`
	Availability []string `json:"availability,omitempty"`
	Image        []string `json:"image,omitempty"`
	SKU          []string `json:"sku,omitempty"`
	Brand        []string `json:"brand,omitempty"`
	Description  []string `json:"description,omitempty"`
}

// SiteConfig describes how to extract product data from one storefront.
type SiteConfig struct {
	// Name labels the site in logs.
	Name string `json:"name"`
	// Fragments are matched as case-insensitive substrings of the page's
	// domain, e.g. "amazon." matches www.amazon.in and amazon.co.uk.
	Fragments []string `json:"fragments"`
	// UseStructuredData tries JSON-LD blocks before CSS selectors.
	UseStructuredData bool `json:"use_structured_data"`
	// StructuredType is the schema.org @type to accept, empty for any.
	StructuredType string    `json:"structured_type,omitempty"`
	Selectors      Selectors `json:"selectors"`
}

// tableFile is the JSON document accepted by LoadFile.
type tableFile struct {
	UserAgents []string     `json:"user_agents,omitempty"`
	Sites      []SiteConfig `json:"sites"`
	Generic    *SiteConfig  `json:"generic,omitempty"`
}

// Registry resolves domains to site configs and hands out user agents.
// Safe for concurrent use; Reload swaps the whole table atomically.
type Registry struct {
	mu         sync.RWMutex
	sites      []SiteConfig
	generic    SiteConfig
	userAgents []string
	path       string
}

// New returns a registry preloaded with the built-in site table.
func New() *Registry {
	return &Registry{
		sites:      defaultSites(),
		generic:    genericSite(),
		userAgents: defaultUserAgents(),
	}
}

// Lookup returns the config for the first site whose fragment appears in
// domain. Matching is case-insensitive and registration order decides ties.
// Unknown domains get the generic config, never a zero value.
func (r *Registry) Lookup(domain string) SiteConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := strings.ToLower(strings.TrimSpace(domain))
	if d != "" {
		for _, site := range r.sites {
			for _, frag := range site.Fragments {
				if frag != "" && strings.Contains(d, strings.ToLower(frag)) {
					return site
				}
			}
		}
	}
	return r.generic
}

// Generic returns the fallback config used for unknown domains.
func (r *Registry) Generic() SiteConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generic
}

// RandomUserAgent picks uniformly from the pool.
func (r *Registry) RandomUserAgent() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userAgents[rand.Intn(len(r.userAgents))]
}

// Sites returns a copy of the current table, generic config excluded.
func (r *Registry) Sites() []SiteConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SiteConfig, len(r.sites))
	copy(out, r.sites)
	return out
}

// LoadFile replaces the table with the contents of a JSON file. On any
// error the previous table stays in place. The path is remembered for
// Reload.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read site table: %w", err)
	}

	var tf tableFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("parse site table %s: %w", path, err)
	}
	if len(tf.Sites) == 0 {
		return fmt.Errorf("site table %s defines no sites", path)
	}
	for i, site := range tf.Sites {
		if site.Name == "" {
			return fmt.Errorf("site table %s: site %d has no name", path, i)
		}
		if len(site.Fragments) == 0 {
			return fmt.Errorf("site table %s: site %q has no domain fragments", path, site.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites = tf.Sites
	if tf.Generic != nil {
		r.generic = *tf.Generic
	}
	if len(tf.UserAgents) > 0 {
		r.userAgents = tf.UserAgents
	}
	r.path = path
	return nil
}

// Reload re-reads the file given to the last successful LoadFile.
func (r *Registry) Reload() error {
	r.mu.RLock()
	path := r.path
	r.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("no site table file configured")
	}
	return r.LoadFile(path)
}

func defaultSites() []SiteConfig {
	return []SiteConfig{
		{
			Name:      "amazon",
			Fragments: []string{"amazon."},
			Selectors: Selectors{
				Name:         []string{"#productTitle", "span#title"},
				Price:        []string{"span.a-price span.a-offscreen", "#priceblock_ourprice", "#priceblock_dealprice"},
				Availability: []string{"#availability span", "#availability"},
				Image:        []string{"#landingImage", "#imgBlkFront"},
				Brand:        []string{"#bylineInfo", "a#brand"},
			},
		},
		{
			Name:              "flipkart",
			Fragments:         []string{"flipkart."},
			UseStructuredData: true,
			StructuredType:    "Product",
			Selectors: Selectors{
				Name:         []string{"span.B_NuCI", "h1._6EBuvT span"},
				Price:        []string{"div._30jeq3._16Jk6d", "div._30jeq3"},
				Availability: []string{"div._16FRp0"},
				Image:        []string{"img._396cs4", "img._2r_T1I"},
			},
		},
		{
			Name:              "myntra",
			Fragments:         []string{"myntra."},
			UseStructuredData: true,
			StructuredType:    "Product",
			Selectors: Selectors{
				Name:  []string{"h1.pdp-title", "h1.pdp-name"},
				Price: []string{"span.pdp-price strong", "span.pdp-price"},
				Image: []string{"div.image-grid-image", "img.img-responsive"},
				Brand: []string{"h1.pdp-title"},
			},
		},
		{
			Name:              "ebay",
			Fragments:         []string{"ebay."},
			UseStructuredData: true,
			Selectors: Selectors{
				Name:  []string{"h1.x-item-title__mainTitle span", "#itemTitle"},
				Price: []string{"div.x-price-primary span.ux-textspans", "#prcIsum"},
				Image: []string{"div.ux-image-carousel-item img", "#icImg"},
			},
		},
	}
}

func genericSite() SiteConfig {
	return SiteConfig{
		Name:              "generic",
		UseStructuredData: true,
		StructuredType:    "Product",
		Selectors: Selectors{
			Name: []string{"meta[property='og:title']", "h1[itemprop='name']", "h1"},
			Price: []string{
				"meta[property='product:price:amount']",
				"meta[itemprop='price']",
				"[itemprop='price']",
				"span.price", ".product-price", ".price",
			},
			Currency: []string{
				"meta[property='product:price:currency']",
				"meta[itemprop='priceCurrency']",
				"[itemprop='priceCurrency']",
			},
			Availability: []string{
				"link[itemprop='availability']",
				"meta[itemprop='availability']",
				".availability", ".stock",
			},
			Image: []string{
				"meta[property='og:image']",
				"img[itemprop='image']",
				".product-image img", "#product-image",
			},
			Description: []string{
				"meta[property='og:description']",
				"meta[name='description']",
			},
		},
	}
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	}
}
