package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"devbills/backend/internal/billing"
	"devbills/backend/internal/config"
	"devbills/backend/internal/models"
)

// ErrNoPreview is returned when a session has no saved invoice preview.
var ErrNoPreview = errors.New("no invoice preview saved")

// ISessionService holds per-session working state: the product shortlist used
// to fill invoice lines quickly, and the in-progress invoice preview. Both are
// scratch data with a TTL, not part of the permanent invoice record.
type ISessionService interface {
	Products(ctx context.Context, ownerKey string) ([]models.Product, error)
	AddProduct(ctx context.Context, ownerKey string, p models.Product) ([]models.Product, error)
	RemoveProduct(ctx context.Context, ownerKey string, index int) ([]models.Product, error)
	Preview(ctx context.Context, ownerKey string) (*models.PreviewPayload, error)
	PutPreview(ctx context.Context, ownerKey string, p models.PreviewPayload) (*models.PreviewPayload, error)
}

// sessionService implements ISessionService on Redis.
type sessionService struct {
	rdb *redis.Client
	cfg *config.Config
}

// NewSessionService creates a new SessionService.
func NewSessionService(rdb *redis.Client, cfg *config.Config) ISessionService {
	return &sessionService{rdb: rdb, cfg: cfg}
}

func productsKey(ownerKey string) string { return "products:" + ownerKey }
func previewKey(ownerKey string) string  { return "preview:" + ownerKey }

// Products returns the session's product shortlist, empty if none saved.
func (s *sessionService) Products(ctx context.Context, ownerKey string) ([]models.Product, error) {
	raw, err := s.rdb.Get(ctx, productsKey(ownerKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.Product{}, nil
		}
		return nil, fmt.Errorf("failed to read products for %s: %w", ownerKey, err)
	}

	var products []models.Product
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return nil, fmt.Errorf("corrupt product list for %s: %w", ownerKey, err)
	}
	return products, nil
}

// AddProduct appends a product to the shortlist and returns the updated list.
func (s *sessionService) AddProduct(ctx context.Context, ownerKey string, p models.Product) ([]models.Product, error) {
	products, err := s.Products(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	products = append(products, p)
	if err := s.storeProducts(ctx, ownerKey, products); err != nil {
		return nil, err
	}
	return products, nil
}

// RemoveProduct deletes the product at the given position. An out-of-range
// index leaves the list unchanged.
func (s *sessionService) RemoveProduct(ctx context.Context, ownerKey string, index int) ([]models.Product, error) {
	products, err := s.Products(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(products) {
		return products, nil
	}
	products = append(products[:index], products[index+1:]...)
	if err := s.storeProducts(ctx, ownerKey, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *sessionService) storeProducts(ctx context.Context, ownerKey string, products []models.Product) error {
	raw, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("failed to encode product list: %w", err)
	}
	if err := s.rdb.Set(ctx, productsKey(ownerKey), raw, s.cfg.SessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to store product list for %s: %w", ownerKey, err)
	}
	return nil
}

// Preview returns the session's saved invoice preview.
// Returns ErrNoPreview when none is saved or the TTL expired.
func (s *sessionService) Preview(ctx context.Context, ownerKey string) (*models.PreviewPayload, error) {
	raw, err := s.rdb.Get(ctx, previewKey(ownerKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoPreview
		}
		return nil, fmt.Errorf("failed to read preview for %s: %w", ownerKey, err)
	}

	var preview models.PreviewPayload
	if err := json.Unmarshal([]byte(raw), &preview); err != nil {
		return nil, fmt.Errorf("corrupt preview for %s: %w", ownerKey, err)
	}
	return &preview, nil
}

// PutPreview stores the in-progress invoice. Totals in the payload are
// discarded and recomputed from the items, so a stale or tampered client can
// never park wrong amounts in the preview.
func (s *sessionService) PutPreview(ctx context.Context, ownerKey string, p models.PreviewPayload) (*models.PreviewPayload, error) {
	p.Totals = billing.RoundTotals(billing.ComputeTotals(p.Items, p.Tax))

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	if err := s.rdb.Set(ctx, previewKey(ownerKey), raw, s.cfg.SessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to store preview for %s: %w", ownerKey, err)
	}
	return &p, nil
}
