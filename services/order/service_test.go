package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"marketplace-backend/pkg/config"
	"marketplace-backend/pkg/db/pagination"
	"marketplace-backend/pkg/errutil"
	"marketplace-backend/pkg/lock"
	"marketplace-backend/pkg/middleware"
	"marketplace-backend/services/offer"
	"marketplace-backend/services/testutil"
)

type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]*sync.Mutex)}
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (*lock.Lock, error) {
	f.mu.Lock()
	m, ok := f.locks[key]
	if !ok {
		m = &sync.Mutex{}
		f.locks[key] = m
	}
	f.mu.Unlock()

	m.Lock()
	return lock.NewHeldLock(key, func(context.Context) error {
		m.Unlock()
		return nil
	}), nil
}

type limiterCall struct {
	Name   string
	Amount int64
	Limit  int64
}

type fakeLimiter struct {
	mu    sync.Mutex
	calls []limiterCall
	err   error
}

func (f *fakeLimiter) Allow(ctx context.Context, name string, limit int64, window time.Duration) error {
	return f.AllowAmount(ctx, name, 1, limit, window)
}

func (f *fakeLimiter) AllowAmount(_ context.Context, name string, amount, limit int64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, limiterCall{Name: name, Amount: amount, Limit: limit})
	return f.err
}

type payoutCall struct {
	Address string
	AppID   string
	Amount  int64
	OrderID string
}

type fakePayments struct {
	mu    sync.Mutex
	calls []payoutCall
	err   error
}

func (f *fakePayments) PayTo(_ context.Context, address, appID string, amount int64, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, payoutCall{Address: address, AppID: appID, Amount: amount, OrderID: orderID})
	return f.err
}

func (f *fakePayments) Calls() []payoutCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]payoutCall(nil), f.calls...)
}

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	payments *fakePayments
	limiter  *fakeLimiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t, &offer.Offer{}, &Order{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	payments := &fakePayments{}
	limiter := &fakeLimiter{}

	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Offers:   offer.NewService(offer.ServiceParams{DB: db}),
		Locker:   newFakeLocker(),
		Limiter:  limiter,
		Payments: payments,
		Config:   &config.Config{},
	})

	return &testEnv{svc: svc, db: db, payments: payments, limiter: limiter}
}

func testCaller(userID string) middleware.Caller {
	return middleware.Caller{
		AppID:         "app-1",
		UserID:        userID,
		DeviceID:      "device-1",
		WalletAddress: "wallet-" + userID,
	}
}

func seedEarnOffer(t *testing.T, db *gorm.DB, id string, capTotal, capPerUser int64) *offer.Offer {
	t.Helper()
	off := &offer.Offer{
		ID:       id,
		AppID:    "app-1",
		Type:     offer.TypeEarn,
		Amount:   25,
		Cap:      offer.Cap{Total: capTotal, PerUser: capPerUser},
		Title:    "Quiz",
		Content:  datatypes.JSON(`{"fields":[{"name":"answer","required":true}]}`),
		IsActive: true,
	}
	require.NoError(t, db.Create(off).Error)
	return off
}

func seedSpendOffer(t *testing.T, db *gorm.DB, id string) *offer.Offer {
	t.Helper()
	off := &offer.Offer{
		ID:            id,
		AppID:         "app-1",
		Type:          offer.TypeSpend,
		Amount:        10,
		WalletAddress: "app-wallet",
		IsActive:      true,
	}
	require.NoError(t, db.Create(off).Error)
	return off
}

func (e *testEnv) fetchOrder(t *testing.T, id string) *Order {
	t.Helper()
	var o Order
	err := e.db.Where("id = ?", id).First(&o).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	require.NoError(t, err)
	return &o
}

// ageOrder rewrites the row's dates so deadlines computed from them sit in
// the past.
func (e *testEnv) ageOrder(t *testing.T, id string, createdAt time.Time, statusDate *time.Time) {
	t.Helper()
	updates := map[string]any{"created_at": createdAt}
	if statusDate != nil {
		updates["current_status_date"] = *statusDate
	}
	require.NoError(t, e.db.Model(&Order{}).Where("id = ?", id).Updates(updates).Error)
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)

	before := time.Now()
	result, err := env.svc.CreateOrder(ctx, testCaller("user-1"), "offer-1", OriginMarketplace)
	require.NoError(t, err)
	require.Contains(t, result.ID, "order_")
	require.WithinDuration(t, before.Add(10*time.Minute), result.ExpirationDate, 5*time.Second)

	persisted := env.fetchOrder(t, result.ID)
	require.NotNil(t, persisted)
	require.Equal(t, StatusOpened, persisted.Status)
	require.Equal(t, OriginMarketplace, persisted.Origin)
	require.Equal(t, TypeEarn, persisted.Type)
	require.EqualValues(t, 25, persisted.Amount)
	require.Nil(t, persisted.CurrentStatusDate)
}

func TestCreateOrder_OfferNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateOrder(context.Background(), testCaller("user-1"), "missing", OriginMarketplace)
	require.Error(t, err)
	require.Contains(t, err.Error(), "offer not found")
}

func TestCreateOrder_IdempotentReentry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)

	first, err := env.svc.CreateOrder(ctx, testCaller("user-1"), "offer-1", OriginMarketplace)
	require.NoError(t, err)

	second, err := env.svc.CreateOrder(ctx, testCaller("user-1"), "offer-1", OriginMarketplace)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, env.db.Model(&Order{}).Where("offer_id = ?", "offer-1").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateOrder_TotalCapExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 1, 1)

	_, err := env.svc.CreateOrder(ctx, testCaller("user-1"), "offer-1", OriginMarketplace)
	require.NoError(t, err)

	_, err = env.svc.CreateOrder(ctx, testCaller("user-2"), "offer-1", OriginMarketplace)
	require.Error(t, err)
	require.Contains(t, err.Error(), "capacity exhausted")
}

func TestCreateOrder_PerUserCapCountsAllStatuses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 0, 1)
	caller := testCaller("user-1")

	first, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)

	// Submitting moves the order out of opened, so re-entry no longer
	// applies; the per-user cap must still count it.
	_, err = env.svc.SubmitOrder(ctx, caller, first.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)

	_, err = env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.Error(t, err)
	require.Contains(t, err.Error(), "capacity exhausted")
}

func TestCreateOrder_ConcurrentCapInvariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 3, 1)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			caller := testCaller("user-" + string(rune('a'+n)))
			_, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			require.Contains(t, err.Error(), "capacity exhausted")
			rejected++
		}
	}
	require.Equal(t, 3, ok)
	require.Equal(t, workers-3, rejected)

	var count int64
	require.NoError(t, env.db.Model(&Order{}).Where("offer_id = ?", "offer-1").Count(&count).Error)
	require.EqualValues(t, 3, count)
}

func TestCreateOrder_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.limiter.err = errRateLimited()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)

	_, err := env.svc.CreateOrder(context.Background(), testCaller("user-1"), "offer-1", OriginMarketplace)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limit")
}

func errRateLimited() error {
	return errutil.TooManyRequest("rate limit reached")
}

func TestSubmitOrder_Earn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)

	view, err := env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)
	require.Equal(t, StatusPending, view.Status)
	require.NotNil(t, view.ExpirationDate)

	persisted := env.fetchOrder(t, created.ID)
	require.Equal(t, StatusPending, persisted.Status)
	require.NotNil(t, persisted.CurrentStatusDate)

	calls := env.payments.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, payoutCall{
		Address: caller.WalletAddress,
		AppID:   caller.AppID,
		Amount:  25,
		OrderID: created.ID,
	}, calls[0])
}

func TestSubmitOrder_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)

	first, err := env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)

	second, err := env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, first.ID, second.ID)

	// Only the first call triggers the payout and persists a transition.
	require.Len(t, env.payments.Calls(), 1)
	persisted := env.fetchOrder(t, created.ID)
	require.Equal(t, StatusPending, persisted.Status)
}

func TestSubmitOrder_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)
	env.ageOrder(t, created.ID, time.Now().Add(-11*time.Minute), nil)

	_, err = env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "order expired")
	require.Empty(t, env.payments.Calls())
}

func TestSubmitOrder_InvalidForm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)

	_, err = env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "form is invalid")

	persisted := env.fetchOrder(t, created.ID)
	require.Equal(t, StatusOpened, persisted.Status)
}

func TestSubmitOrder_EarnRequiresWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)

	caller.WalletAddress = ""
	_, err = env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "wallet address")
}

func TestSubmitOrder_SpendDoesNotTriggerPayout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedSpendOffer(t, env.db, "offer-spend")
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-spend", OriginMarketplace)
	require.NoError(t, err)

	view, err := env.svc.SubmitOrder(ctx, caller, created.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusPending, view.Status)
	require.Empty(t, env.payments.Calls())
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)

	require.NoError(t, env.svc.CancelOrder(ctx, caller, created.ID))
	require.Nil(t, env.fetchOrder(t, created.ID))
}

func TestCancelOrder_GuardsNonOpened(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)
	_, err = env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)

	err = env.svc.CancelOrder(ctx, caller, created.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no longer be cancelled")

	persisted := env.fetchOrder(t, created.ID)
	require.Equal(t, StatusPending, persisted.Status)
}

func TestCancelOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.CancelOrder(context.Background(), testCaller("user-1"), "order_missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "order not found")
}

func TestGetOrder_HidesOpened(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)

	_, err = env.svc.GetOrder(ctx, caller, created.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "order not found")
}

func TestGetOrder_LazyTimeout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)
	_, err = env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)

	stale := time.Now().Add(-46 * time.Second)
	env.ageOrder(t, created.ID, stale.Add(-time.Minute), &stale)

	// The read reflects the flip immediately, whether or not the
	// background persist has landed yet.
	view, err := env.svc.GetOrder(ctx, caller, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, view.Status)
	require.NotNil(t, view.Error)
	require.Equal(t, "order_timeout", view.Error.Code)

	require.Eventually(t, func() bool {
		return env.fetchOrder(t, created.ID).Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReconcile_PersistIsObservable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)
	_, err = env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)

	stale := time.Now().Add(-time.Minute)
	env.ageOrder(t, created.ID, stale.Add(-time.Minute), &stale)

	row := env.fetchOrder(t, created.ID)
	require.NoError(t, <-env.svc.reconcile(row))
	require.Equal(t, StatusFailed, row.Status)
	require.Equal(t, StatusFailed, env.fetchOrder(t, created.ID).Status)
}

func TestReconcile_LeavesFreshPendingAlone(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	o := &Order{ID: "order_x", Status: StatusPending, CreatedAt: now, CurrentStatusDate: &now}

	require.NoError(t, <-env.svc.reconcile(o))
	require.Equal(t, StatusPending, o.Status)
}

func TestOrderHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caller := testCaller("user-1")

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	seed := func(id string, status Status, at time.Time) {
		statusDate := at
		require.NoError(t, env.db.Create(&Order{
			ID:                id,
			CreatedAt:         at.Add(-time.Minute),
			AppID:             caller.AppID,
			UserID:            caller.UserID,
			OfferID:           "offer-1",
			Origin:            OriginMarketplace,
			Type:              TypeEarn,
			Amount:            25,
			Status:            status,
			Value:             encodeValue(OriginMarketplace, 25, TypeEarn),
			CurrentStatusDate: &statusDate,
		}).Error)
	}

	seed("order_1", StatusCompleted, base.Add(1*time.Minute))
	seed("order_2", StatusFailed, base.Add(2*time.Minute))
	seed("order_3", StatusCompleted, base.Add(3*time.Minute))

	// Opened orders stay invisible to history.
	require.NoError(t, env.db.Create(&Order{
		ID:        "order_open",
		CreatedAt: base.Add(4 * time.Minute),
		AppID:     caller.AppID,
		UserID:    caller.UserID,
		OfferID:   "offer-1",
		Origin:    OriginMarketplace,
		Type:      TypeEarn,
		Amount:    25,
		Status:    StatusOpened,
	}).Error)

	views, info, err := env.svc.OrderHistory(ctx, caller, pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "order_3", views[0].ID)
	require.Equal(t, "order_2", views[1].ID)
	require.True(t, info.HasMore)

	next, nextInfo, err := env.svc.OrderHistory(ctx, caller, pagination.Pagination{Limit: 2, After: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.Equal(t, "order_1", next[0].ID)
	require.False(t, nextInfo.HasMore)
}

func TestOrderHistory_BeforeCursor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caller := testCaller("user-1")

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	for i, id := range []string{"order_1", "order_2", "order_3"} {
		statusDate := base.Add(time.Duration(i+1) * time.Minute)
		require.NoError(t, env.db.Create(&Order{
			ID:                id,
			CreatedAt:         statusDate.Add(-time.Minute),
			AppID:             caller.AppID,
			UserID:            caller.UserID,
			OfferID:           "offer-1",
			Origin:            OriginExternal,
			Type:              TypeSpend,
			Amount:            10,
			Status:            StatusCompleted,
			Value:             "10",
			CurrentStatusDate: &statusDate,
		}).Error)
	}

	_, info, err := env.svc.OrderHistory(ctx, caller, pagination.Pagination{Limit: 2})
	require.NoError(t, err)

	second, secondInfo, err := env.svc.OrderHistory(ctx, caller, pagination.Pagination{Limit: 2, After: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, "order_1", second[0].ID)

	back, _, err := env.svc.OrderHistory(ctx, caller, pagination.Pagination{Limit: 2, Before: secondInfo.PreviousCursor})
	require.NoError(t, err)
	require.Len(t, back, 2)
	require.Equal(t, "order_3", back[0].ID)
	require.Equal(t, "order_2", back[1].ID)
}

func TestCompletePayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)
	_, err = env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)

	data := BlockchainData{TransactionID: "tx-1", RecipientAddress: caller.WalletAddress}
	require.NoError(t, env.svc.CompletePayment(ctx, created.ID, data))

	persisted := env.fetchOrder(t, created.ID)
	require.Equal(t, StatusCompleted, persisted.Status)
	require.NotEmpty(t, persisted.BlockchainData)

	// A late failure report for the already-completed order is dropped.
	require.NoError(t, env.svc.FailPayment(ctx, created.ID, OrderError{Code: "payment_failed"}))
	require.Equal(t, StatusCompleted, env.fetchOrder(t, created.ID).Status)
}

func TestFailPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 2)
	caller := testCaller("user-1")

	created, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)
	_, err = env.svc.SubmitOrder(ctx, caller, created.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)

	cause := OrderError{Code: "payment_rejected", Error: "PaymentRejected", Message: "insufficient funds"}
	require.NoError(t, env.svc.FailPayment(ctx, created.ID, cause))

	view, err := env.svc.GetOrder(ctx, caller, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, view.Status)
	require.Equal(t, "payment_rejected", view.Error.Code)
}

func TestHandleExpireSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedEarnOffer(t, env.db, "offer-1", 10, 5)
	caller := testCaller("user-1")

	staleOpened, err := env.svc.CreateOrder(ctx, caller, "offer-1", OriginMarketplace)
	require.NoError(t, err)
	env.ageOrder(t, staleOpened.ID, time.Now().Add(-11*time.Minute), nil)

	stalePending, err := env.svc.CreateOrder(ctx, testCaller("user-2"), "offer-1", OriginMarketplace)
	require.NoError(t, err)
	_, err = env.svc.SubmitOrder(ctx, testCaller("user-2"), stalePending.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)
	oldDate := time.Now().Add(-time.Minute)
	env.ageOrder(t, stalePending.ID, oldDate.Add(-time.Minute), &oldDate)

	freshPending, err := env.svc.CreateOrder(ctx, testCaller("user-3"), "offer-1", OriginMarketplace)
	require.NoError(t, err)
	_, err = env.svc.SubmitOrder(ctx, testCaller("user-3"), freshPending.ID, map[string]any{"answer": "42"})
	require.NoError(t, err)

	require.NoError(t, env.svc.HandleExpireSweep(ctx, NewExpireSweepTask()))

	require.Equal(t, StatusFailed, env.fetchOrder(t, staleOpened.ID).Status)
	require.Equal(t, StatusFailed, env.fetchOrder(t, stalePending.ID).Status)
	require.Equal(t, StatusPending, env.fetchOrder(t, freshPending.ID).Status)
}
