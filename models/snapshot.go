package models

import "time"

// Snapshot holds whatever a single scrape managed to extract from a product
// page. Every field is optional: empty strings and nil pointers mean the
// field was not found. Snapshots are never persisted.
type Snapshot struct {
	URL          string   `json:"url"`
	Domain       string   `json:"domain,omitempty"`
	Name         string   `json:"name,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	Availability string   `json:"availability,omitempty"`
	Image        string   `json:"image,omitempty"`
	SKU          string   `json:"sku,omitempty"`
	MPN          string   `json:"mpn,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// HasPrice reports whether the scrape yielded a usable price.
func (s *Snapshot) HasPrice() bool {
	return s.Price != nil
}

// IsEmpty reports whether nothing at all was extracted.
func (s *Snapshot) IsEmpty() bool {
	return s.Name == "" && s.Price == nil && s.Currency == "" &&
		s.Availability == "" && s.Image == "" && s.SKU == "" &&
		s.MPN == "" && s.Brand == "" && s.Description == ""
}

// ProductUpdate is a partial update to a product row. Nil pointers mean
// "leave the column alone", so a diff can be expressed without touching
// fields it never looked at.
type ProductUpdate struct {
	Name             *string    `json:"name,omitempty"`
	CurrentPrice     *float64   `json:"current_price,omitempty"`
	Currency         *string    `json:"currency,omitempty"`
	Availability     *string    `json:"availability,omitempty"`
	TargetPrice      *float64   `json:"target_price,omitempty"`
	Image            *string    `json:"image,omitempty"`
	MetadataComplete *bool      `json:"metadata_complete,omitempty"`
	LastChecked      *time.Time `json:"last_checked,omitempty"`
}

// IsEmpty reports whether the update carries no changes.
func (u *ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.CurrentPrice == nil && u.Currency == nil &&
		u.Availability == nil && u.TargetPrice == nil && u.Image == nil &&
		u.MetadataComplete == nil && u.LastChecked == nil
}

// Changes flattens the update into a column map for a single UPDATE
// statement. Only non-nil fields appear.
func (u *ProductUpdate) Changes() map[string]any {
	m := make(map[string]any)
	if u.Name != nil {
		m["name"] = *u.Name
	}
	if u.CurrentPrice != nil {
		m["current_price"] = *u.CurrentPrice
	}
	if u.Currency != nil {
		m["currency"] = *u.Currency
	}
	if u.Availability != nil {
		m["availability"] = *u.Availability
	}
	if u.TargetPrice != nil {
		m["target_price"] = *u.TargetPrice
	}
	if u.Image != nil {
		m["image"] = *u.Image
	}
	if u.MetadataComplete != nil {
		m["metadata_complete"] = *u.MetadataComplete
	}
	if u.LastChecked != nil {
		m["last_checked"] = *u.LastChecked
	}
	return m
}

// BatchResult summarizes one reconciliation pass over the tracked products.
type BatchResult struct {
	Success  int           `json:"success"`
	Failure  int           `json:"failure"`
	Duration time.Duration `json:"-"`
}
