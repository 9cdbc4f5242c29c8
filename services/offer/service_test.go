package offer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketplace-backend/services/testutil"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Offer{})
	svc := NewService(ServiceParams{DB: db})
	return svc, db
}

func seedOffer(t *testing.T, db *gorm.DB, off *Offer) *Offer {
	t.Helper()
	require.NoError(t, db.Create(off).Error)
	return off
}

func TestService_Get(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedOffer(t, db, &Offer{
		ID:     "offer-quiz-1",
		AppID:  "app-1",
		Type:   TypeEarn,
		Amount: 25,
		Cap:    Cap{Total: 100, PerUser: 1},
	})

	got, err := svc.Get(ctx, "offer-quiz-1")
	require.NoError(t, err)
	require.Equal(t, "offer-quiz-1", got.ID)
	require.Equal(t, TypeEarn, got.Type)
	require.EqualValues(t, 25, got.Amount)
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "offer not found")
}

func TestService_Get_CachesLookup(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedOffer(t, db, &Offer{ID: "offer-1", AppID: "app-1", Type: TypeSpend, Amount: 10})

	first, err := svc.Get(ctx, "offer-1")
	require.NoError(t, err)

	// A direct row mutation must not be visible while the cache entry lives.
	require.NoError(t, db.Model(&Offer{}).Where("id = ?", "offer-1").Update("amount", 99).Error)

	second, err := svc.Get(ctx, "offer-1")
	require.NoError(t, err)
	require.Equal(t, first.Amount, second.Amount)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Set("offer-1", &Offer{ID: "offer-1"})

	_, ok := c.Get("offer-1")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("offer-1")
	require.False(t, ok)
}

func TestService_List_OnlyActiveForApp(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedOffer(t, db, &Offer{ID: "offer-1", AppID: "app-1", Type: TypeEarn, Amount: 5, IsActive: true})
	seedOffer(t, db, &Offer{ID: "offer-2", AppID: "app-1", Type: TypeSpend, Amount: 5, IsActive: false})
	seedOffer(t, db, &Offer{ID: "offer-3", AppID: "app-2", Type: TypeEarn, Amount: 5, IsActive: true})

	offers, err := svc.List(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, "offer-1", offers[0].ID)
}
