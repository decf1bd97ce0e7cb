package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"devbills/backend/internal/config"
	"devbills/backend/internal/models"
)

const shopSettingsCollection = "shop_settings"

// IShopService manages per-user shop branding (display name and logo).
type IShopService interface {
	Get(ctx context.Context, ownerKey string) (*models.ShopSettings, error)
	Update(ctx context.Context, ownerKey string, settings models.ShopSettings) error
	SetLogoKey(ctx context.Context, ownerKey string, logoKey string) error
}

// shopService implements IShopService. Redis serves every read, since
// branding is small, mutable and fetched on every page render. Owners with
// an account additionally get their settings written through to Mongo, so
// branding survives a cache flush; guest keys stay Redis-only and expire
// with the session.
type shopService struct {
	db  *mongo.Database
	rdb *redis.Client
	cfg *config.Config
}

// NewShopService creates a new ShopService.
func NewShopService(db *mongo.Database, rdb *redis.Client, cfg *config.Config) IShopService {
	return &shopService{db: db, rdb: rdb, cfg: cfg}
}

func shopKey(ownerKey string) string {
	return "shop:" + ownerKey
}

// Get returns the owner's shop settings. A cache miss falls back to the
// Mongo copy for account owners; an owner who never saved anything gets the
// default shop name rather than an error.
func (s *shopService) Get(ctx context.Context, ownerKey string) (*models.ShopSettings, error) {
	raw, err := s.rdb.Get(ctx, shopKey(ownerKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return s.getPersisted(ctx, ownerKey)
		}
		return nil, fmt.Errorf("failed to read shop settings for %s: %w", ownerKey, err)
	}

	var settings models.ShopSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("corrupt shop settings for %s: %w", ownerKey, err)
	}
	if settings.Name == "" {
		settings.Name = s.cfg.DefaultShopName
	}
	return &settings, nil
}

// getPersisted loads the Mongo copy on a cache miss and re-warms Redis with
// it. Guest keys carry no persisted copy, so they resolve to the defaults.
func (s *shopService) getPersisted(ctx context.Context, ownerKey string) (*models.ShopSettings, error) {
	defaults := &models.ShopSettings{Name: s.cfg.DefaultShopName}

	ownerID, err := primitive.ObjectIDFromHex(ownerKey)
	if err != nil {
		return defaults, nil
	}

	var doc models.StoredShopSettings
	err = s.db.Collection(shopSettingsCollection).FindOne(ctx, bson.M{"_id": ownerID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return defaults, nil
		}
		return nil, fmt.Errorf("failed to load shop settings for %s: %w", ownerKey, err)
	}

	settings := models.ShopSettings{Name: doc.Name, LogoKey: doc.LogoKey}
	if settings.Name == "" {
		settings.Name = s.cfg.DefaultShopName
	}
	if raw, err := json.Marshal(settings); err == nil {
		s.rdb.Set(ctx, shopKey(ownerKey), raw, 0)
	}
	return &settings, nil
}

// Update replaces the owner's shop settings. Account owners get the update
// written through to Mongo as well.
func (s *shopService) Update(ctx context.Context, ownerKey string, settings models.ShopSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode shop settings: %w", err)
	}
	if err := s.rdb.Set(ctx, shopKey(ownerKey), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store shop settings for %s: %w", ownerKey, err)
	}

	ownerID, err := primitive.ObjectIDFromHex(ownerKey)
	if err != nil {
		return nil // Guest session, nothing to persist
	}

	update := bson.M{"$set": bson.M{
		"name":       settings.Name,
		"logo_key":   settings.LogoKey,
		"updated_at": time.Now().UTC(),
	}}
	_, err = s.db.Collection(shopSettingsCollection).
		UpdateByID(ctx, ownerID, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to persist shop settings for %s: %w", ownerKey, err)
	}
	return nil
}

// SetLogoKey records the storage key of a processed logo, keeping the rest of
// the settings intact.
func (s *shopService) SetLogoKey(ctx context.Context, ownerKey string, logoKey string) error {
	settings, err := s.Get(ctx, ownerKey)
	if err != nil {
		return err
	}
	settings.LogoKey = logoKey
	return s.Update(ctx, ownerKey, *settings)
}
