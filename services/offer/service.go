package offer

import (
	"context"
	"time"

	"marketplace-backend/pkg/db/option"
	"marketplace-backend/pkg/errutil"
	"marketplace-backend/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

const cacheTTL = 30 * time.Second

type Service struct {
	db    *gorm.DB
	offer repository.Repository[Offer]
	cache *Cache
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		offer: repository.ProvideStore[Offer](p.DB),
		cache: NewCache(cacheTTL),
	}
}

// Get returns the offer by id, reading through a short-lived in-memory cache.
func (s *Service) Get(ctx context.Context, offerID string) (*Offer, error) {
	if offerID == "" {
		return nil, errutil.BadRequest("offer_id is required")
	}

	return s.cache.Load(offerID, func() (*Offer, error) {
		off, err := s.offer.FindOne(ctx, &Offer{ID: offerID})
		if err != nil {
			return nil, err
		}
		if off == nil {
			return nil, errutil.NotFound("offer not found")
		}
		return off, nil
	})
}

// List returns the active offers visible to an application, newest first.
func (s *Service) List(ctx context.Context, appID string) ([]*Offer, error) {
	return s.offer.Find(ctx, &Offer{AppID: appID, IsActive: true},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "DESC",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
}
