// Package models defines the persisted and transient data structures for the
// price tracker.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Availability states a product can be in. Stored as plain strings so the
// values survive round trips through the API and the database unchanged.
const (
	AvailabilityInStock      = "InStock"
	AvailabilityOutOfStock   = "OutOfStock"
	AvailabilityLimitedStock = "LimitedStock"
	AvailabilityPreOrder     = "PreOrder"
)

// ValidAvailability reports whether s is one of the known availability states.
func ValidAvailability(s string) bool {
	switch s {
	case AvailabilityInStock, AvailabilityOutOfStock, AvailabilityLimitedStock, AvailabilityPreOrder:
		return true
	}
	return false
}

// Product is the GORM model persisted in Postgres. The URL is the product's
// identity: one row per URL, enforced by a unique index.
type Product struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	URL              string         `gorm:"type:varchar(2048);not null;uniqueIndex" json:"url"`
	Name             string         `gorm:"type:varchar(512);not null" json:"name"`
	Domain           string         `gorm:"type:varchar(256);index" json:"domain"`
	CurrentPrice     float64        `gorm:"not null" json:"current_price"`
	Currency         string         `gorm:"type:varchar(8)" json:"currency"`
	Availability     string         `gorm:"type:varchar(32);not null;default:'InStock'" json:"availability"`
	TargetPrice      *float64       `json:"target_price,omitempty"`
	Image            string         `gorm:"type:varchar(2048)" json:"image,omitempty"`
	SKU              string         `gorm:"type:varchar(128)" json:"sku,omitempty"`
	MPN              string         `gorm:"type:varchar(128)" json:"mpn,omitempty"`
	Brand            string         `gorm:"type:varchar(256)" json:"brand,omitempty"`
	ArticleType      string         `gorm:"type:varchar(128)" json:"article_type,omitempty"`
	SubCategory      string         `gorm:"type:varchar(128)" json:"sub_category,omitempty"`
	MasterCategory   string         `gorm:"type:varchar(128)" json:"master_category,omitempty"`
	MetadataComplete bool           `gorm:"not null;default:false" json:"metadata_complete"`
	LastChecked      *time.Time     `json:"last_checked,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	History          []PriceHistory `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
}

// Validate checks the fields a product row must carry before it is persisted.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("product URL is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name is required")
	}
	if p.CurrentPrice <= 0 {
		return fmt.Errorf("current price must be positive, got %v", p.CurrentPrice)
	}
	if p.Availability != "" && !ValidAvailability(p.Availability) {
		return fmt.Errorf("unknown availability %q", p.Availability)
	}
	if p.TargetPrice != nil && *p.TargetPrice <= 0 {
		return fmt.Errorf("target price must be positive, got %v", *p.TargetPrice)
	}
	return nil
}

// PriceHistory is one observed price for a product. Rows are append-only and
// removed only by the cascade when their product is deleted.
type PriceHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProductID    uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Price        float64   `gorm:"not null" json:"price"`
	Availability string    `gorm:"type:varchar(32)" json:"availability,omitempty"`
	CheckedAt    time.Time `gorm:"autoCreateTime;index" json:"checked_at"`
}
