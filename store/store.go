// Package store persists products and their price history in Postgres.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aluiziolira/go-price-tracker/models"
)

// ErrNotFound is returned when a product row does not exist.
var ErrNotFound = errors.New("product not found")

// ProductStore defines data-access operations for products and their
// price history.
type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByURL(ctx context.Context, url string) (*models.Product, error)
	FindAll(ctx context.Context) ([]models.Product, error)
	Update(ctx context.Context, id uuid.UUID, update *models.ProductUpdate) error
	Delete(ctx context.Context, id uuid.UUID) error
	BulkUpdateLastChecked(ctx context.Context, ids []uuid.UUID, checkedAt time.Time) error
	AppendPriceHistory(ctx context.Context, productID uuid.UUID, price float64, availability string) error
	FindHistory(ctx context.Context, productID uuid.UUID, limit int) ([]models.PriceHistory, error)
}

// GormProductStore implements ProductStore using GORM.
type GormProductStore struct {
	db *gorm.DB
}

// NewGormProductStore creates a new GormProductStore.
func NewGormProductStore(db *gorm.DB) ProductStore {
	return &GormProductStore{db: db}
}

// Create inserts the product and seeds its first price history row in one
// transaction. A missing ID is generated client-side.
func (s *GormProductStore) Create(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		seed := &models.PriceHistory{
			ProductID:    product.ID,
			Price:        product.CurrentPrice,
			Availability: product.Availability,
		}
		return tx.Create(seed).Error
	})
}

func (s *GormProductStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormProductStore) FindByURL(ctx context.Context, url string) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Where("url = ?", url).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormProductStore) FindAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Update applies the non-nil fields of update to one row in a single
// statement. Empty updates are a no-op.
func (s *GormProductStore) Update(ctx context.Context, id uuid.UUID, update *models.ProductUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Updates(update.Changes())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the product; the FK constraint cascades its history.
func (s *GormProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkUpdateLastChecked stamps every given product in one statement.
func (s *GormProductStore) BulkUpdateLastChecked(ctx context.Context, ids []uuid.UUID, checkedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id IN ?", ids).
		Update("last_checked", checkedAt).Error
}

func (s *GormProductStore) AppendPriceHistory(ctx context.Context, productID uuid.UUID, price float64, availability string) error {
	row := &models.PriceHistory{
		ProductID:    productID,
		Price:        price,
		Availability: availability,
	}
	return s.db.WithContext(ctx).Create(row).Error
}

// FindHistory returns the newest entries first. limit <= 0 returns all.
func (s *GormProductStore) FindHistory(ctx context.Context, productID uuid.UUID, limit int) ([]models.PriceHistory, error) {
	q := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("checked_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []models.PriceHistory
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
