// Package export renders a product's price history for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aluiziolira/go-price-tracker/models"
)

// WriteCSV streams history rows as CSV, header first.
func WriteCSV(w io.Writer, product *models.Product, rows []models.PriceHistory) error {
	cw := csv.NewWriter(w)

	header := []string{"product_id", "name", "url", "price", "currency", "availability", "checked_at"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			product.ID.String(),
			product.Name,
			product.URL,
			strconv.FormatFloat(row.Price, 'f', -1, 64),
			product.Currency,
			row.Availability,
			row.CheckedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

type historyLine struct {
	ProductID    string    `json:"product_id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	Availability string    `json:"availability,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// WriteJSONL streams history rows as newline-delimited JSON.
func WriteJSONL(w io.Writer, product *models.Product, rows []models.PriceHistory) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		line := historyLine{
			ProductID:    product.ID.String(),
			Name:         product.Name,
			URL:          product.URL,
			Price:        row.Price,
			Currency:     product.Currency,
			Availability: row.Availability,
			CheckedAt:    row.CheckedAt,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	return nil
}
