package order

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace-backend/pkg/config"
	"marketplace-backend/pkg/db/pagination"
	"marketplace-backend/pkg/errutil"
	"marketplace-backend/pkg/lock"
	"marketplace-backend/pkg/middleware"
	"marketplace-backend/pkg/rediskey"
	"marketplace-backend/pkg/repository"
	"marketplace-backend/services/offer"
)

// offerLockTTL bounds how long the per-offer creation lock can be held; the
// count+insert transaction must finish well within it.
const offerLockTTL = 5 * time.Second

const defaultHistoryLimit = 25

// PaymentSubmitter triggers the asynchronous payout for a submitted earn
// order. Confirmation arrives later through CompletePayment/FailPayment.
type PaymentSubmitter interface {
	PayTo(ctx context.Context, address, appID string, amount int64, orderID string) error
}

// RateLimiter is the sliding-window counter the engine throttles with.
type RateLimiter interface {
	Allow(ctx context.Context, name string, limit int64, window time.Duration) error
	AllowAmount(ctx context.Context, name string, amount, limit int64, window time.Duration) error
}

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	orders repository.Repository[Order]

	offers    *offer.Service
	locker    lock.Locker
	limiter   RateLimiter
	payments  PaymentSubmitter
	validator FormValidator
	cfg       *config.Config
}

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Offers   *offer.Service
	Locker   lock.Locker
	Limiter  RateLimiter
	Payments PaymentSubmitter
	Config   *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		orders:    repository.ProvideStore[Order](p.DB),
		offers:    p.Offers,
		locker:    p.Locker,
		limiter:   p.Limiter,
		payments:  p.Payments,
		validator: NewFormValidator(),
		cfg:       p.Config,
	}
}

// CreateResult is the creation response: the reserved order id and when the
// reservation lapses if never submitted.
type CreateResult struct {
	ID             string    `json:"id"`
	ExpirationDate time.Time `json:"expiration_date"`
}

// CreateOrder reserves an opened order against the offer's caps. Re-entry
// with an open order already held returns that order instead of erroring.
// The cap check-then-insert runs under a per-offer lock so concurrent
// creations cannot jointly exceed the cap.
func (s *Service) CreateOrder(ctx context.Context, caller middleware.Caller, offerID string, origin Origin) (*CreateResult, error) {
	switch origin {
	case "":
		origin = OriginMarketplace
	case OriginMarketplace, OriginExternal:
	default:
		return nil, errutil.BadRequest("unknown order origin")
	}

	limits := s.cfg.Limits
	if err := s.limiter.Allow(ctx,
		rediskey.BuildOrderCreationLimitKey(caller.AppID, caller.UserID),
		limits.OrderCreationPerUser, limits.OrderCreationWindow); err != nil {
		return nil, err
	}

	off, err := s.offers.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !off.IsActive {
		return nil, errutil.NotFound("offer not found")
	}

	// Fast idempotent path without the lock; repeated under the lock to
	// close the race against a concurrent first creation.
	existing, err := s.orders.FindOne(ctx, &Order{UserID: caller.UserID, OfferID: offerID, Status: StatusOpened})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &CreateResult{ID: existing.ID, ExpirationDate: *existing.ExpirationDate()}, nil
	}

	held, err := s.locker.Acquire(ctx, rediskey.BuildOfferLockKey(offerID), offerLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := held.Release(context.Background()); err != nil {
			zap.L().Warn("failed to release offer lock", zap.String("offer_id", offerID), zap.Error(err))
		}
	}()

	var created *Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.orders.WithTrx(tx)

		open, err := repo.FindOne(ctx, &Order{UserID: caller.UserID, OfferID: offerID, Status: StatusOpened})
		if err != nil {
			return err
		}
		if open != nil {
			created = open
			return nil
		}

		if off.Cap.Total > 0 {
			total, err := repo.Count(ctx, &Order{OfferID: offerID})
			if err != nil {
				return err
			}
			if total >= off.Cap.Total {
				return ErrCapacityExhausted(offerID)
			}
		}
		if off.Cap.PerUser > 0 {
			mine, err := repo.Count(ctx, &Order{OfferID: offerID, UserID: caller.UserID})
			if err != nil {
				return err
			}
			if mine >= off.Cap.PerUser {
				return ErrCapacityExhausted(offerID)
			}
		}

		o := &Order{
			ID:        NewOrderID(s.node),
			CreatedAt: time.Now(),
			AppID:     caller.AppID,
			UserID:    caller.UserID,
			OfferID:   offerID,
			Origin:    origin,
			Type:      OrderType(off.Type),
			Amount:    off.Amount,
			Status:    StatusOpened,
			Value:     encodeValue(origin, off.Amount, OrderType(off.Type)),
		}
		if origin == OriginMarketplace {
			o.Meta = mustJSON(Meta{
				Title:       off.Title,
				Description: off.Description,
				Image:       off.Image,
				ContentType: off.ContentType,
				Content:     []byte(off.Content),
			})
		}

		if err := repo.Create(ctx, o); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CreateResult{ID: created.ID, ExpirationDate: *created.ExpirationDate()}, nil
}

// SubmitOrder moves an opened order to pending and, for earn offers,
// triggers the payout. Resubmitting an order that already left opened
// returns its current projection without side effects.
func (s *Service) SubmitOrder(ctx context.Context, caller middleware.Caller, orderID string, form map[string]any) (*View, error) {
	o, err := s.orders.FindOne(ctx, &Order{ID: orderID, UserID: caller.UserID})
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errutil.NotFound("order not found")
	}

	if o.Status != StatusOpened {
		s.reconcile(o)
		return Project(o)
	}

	now := time.Now()
	if o.Expired(now) {
		return nil, ErrExpired(orderID)
	}

	off, err := s.offers.Get(ctx, o.OfferID)
	if err != nil {
		return nil, err
	}

	earn := off.Type == offer.TypeEarn
	if earn {
		if caller.WalletAddress == "" {
			return nil, errutil.BadRequest("wallet address is required")
		}
		if err := s.validator.Validate(ctx, off, form); err != nil {
			return nil, err
		}

		limits := s.cfg.Limits
		if err := s.limiter.AllowAmount(ctx,
			rediskey.BuildEarnAppLimitKey(caller.AppID),
			o.Amount, limits.EarnAmountPerApp, limits.EarnAmountWindow); err != nil {
			return nil, err
		}
		if err := s.limiter.AllowAmount(ctx,
			rediskey.BuildEarnUserLimitKey(caller.AppID, caller.UserID),
			o.Amount, limits.EarnAmountPerUser, limits.EarnAmountWindow); err != nil {
			return nil, err
		}
	}

	// Guarded transition: only one concurrent submit persists the flip to
	// pending; the loser reads back whatever won.
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", o.ID, StatusOpened).
		Updates(map[string]any{"status": StatusPending, "current_status_date": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		o, err = s.orders.FindOne(ctx, &Order{ID: orderID, UserID: caller.UserID})
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, errutil.NotFound("order not found")
		}
		return Project(o)
	}

	o.Status = StatusPending
	o.CurrentStatusDate = &now

	if earn {
		// Payment failures from here on are recorded on the order, never
		// surfaced to this call; an unbroadcast payout ages out through the
		// pending timeout.
		if err := s.payments.PayTo(ctx, caller.WalletAddress, caller.AppID, o.Amount, o.ID); err != nil {
			zap.L().Error("failed to trigger payout",
				zap.String("order_id", o.ID),
				zap.String("app_id", caller.AppID),
				zap.Error(err))
		}
	}

	return Project(o)
}

// CancelOrder deletes an order still sitting in opened. Anything past that
// state is no longer cancellable.
func (s *Service) CancelOrder(ctx context.Context, caller middleware.Caller, orderID string) error {
	rows, err := s.orders.Delete(ctx, &Order{ID: orderID, UserID: caller.UserID, Status: StatusOpened})
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	existing, err := s.orders.FindOne(ctx, &Order{ID: orderID, UserID: caller.UserID})
	if err != nil {
		return err
	}
	if existing == nil {
		return errutil.NotFound("order not found")
	}
	return ErrInvalidState(orderID)
}

// GetOrder returns the projection of a submitted order. Opened orders are
// invisible to reads.
func (s *Service) GetOrder(ctx context.Context, caller middleware.Caller, orderID string) (*View, error) {
	o, err := s.orders.FindOne(ctx, &Order{ID: orderID, UserID: caller.UserID})
	if err != nil {
		return nil, err
	}
	if o == nil || o.Status == StatusOpened {
		return nil, errutil.NotFound("order not found")
	}

	s.reconcile(o)
	return Project(o)
}

const statusDateExpr = "COALESCE(current_status_date, created_at)"

// OrderHistory lists a user's submitted orders newest first, stable on
// (status date, id), paginated by opaque cursor.
func (s *Service) OrderHistory(ctx context.Context, caller middleware.Caller, page pagination.Pagination) ([]*View, *pagination.PageInfo, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > 100 {
		limit = 100
	}

	tx := s.db.WithContext(ctx).Model(&Order{}).
		Where("user_id = ? AND app_id = ?", caller.UserID, caller.AppID).
		Where("status <> ?", StatusOpened)

	reversed := false
	switch {
	case page.After != "":
		cur, at, err := decodeHistoryCursor(page.After)
		if err != nil {
			return nil, nil, err
		}
		tx = tx.Where(statusDateExpr+" < ? OR ("+statusDateExpr+" = ? AND id < ?)", at, at, cur.ID)
	case page.Before != "":
		cur, at, err := decodeHistoryCursor(page.Before)
		if err != nil {
			return nil, nil, err
		}
		tx = tx.Where(statusDateExpr+" > ? OR ("+statusDateExpr+" = ? AND id > ?)", at, at, cur.ID)
		reversed = true
	}

	if reversed {
		tx = tx.Order(statusDateExpr + " ASC, id ASC")
	} else {
		tx = tx.Order(statusDateExpr + " DESC, id DESC")
	}

	var rows []*Order
	if err := tx.Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	if reversed {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	// Cursors come from the persisted ordering, before any lazy flip moves
	// a row's status date.
	rows, info, err := pagination.BuildCursorPageInfo(rows, 0, func(o *Order) pagination.Cursor {
		return pagination.Cursor{
			StatusDate: o.StatusDate().UTC().Format(time.RFC3339Nano),
			ID:         o.ID,
		}
	})
	if err != nil {
		return nil, nil, err
	}
	info.HasMore = hasMore

	views := make([]*View, 0, len(rows))
	for _, row := range rows {
		s.reconcile(row)
		v, err := Project(row)
		if err != nil {
			return nil, nil, err
		}
		views = append(views, v)
	}

	return views, info, nil
}

func decodeHistoryCursor(raw string) (*pagination.Cursor, time.Time, error) {
	cur, err := pagination.DecodeCursor(raw)
	if err != nil {
		return nil, time.Time{}, errutil.BadRequest("invalid cursor")
	}
	at, err := time.Parse(time.RFC3339Nano, cur.StatusDate)
	if err != nil {
		return nil, time.Time{}, errutil.BadRequest("invalid cursor")
	}
	return cur, at, nil
}

// reconcile applies the lazy timeout: a pending order past its deadline is
// flipped to failed on the in-memory row immediately and persisted in the
// background. The returned channel reports the persistence outcome for
// callers that want to await it; read paths drop it.
func (s *Service) reconcile(o *Order) <-chan error {
	done := make(chan error, 1)

	now := time.Now()
	if o.Status != StatusPending || !o.Expired(now) {
		done <- nil
		return done
	}

	o.Status = StatusFailed
	o.Error = mustJSON(timeoutError)
	o.CurrentStatusDate = &now

	db := s.db
	go func() {
		res := db.Model(&Order{}).
			Where("id = ? AND status = ?", o.ID, StatusPending).
			Updates(map[string]any{
				"status":              StatusFailed,
				"current_status_date": now,
				"error":               mustJSON(timeoutError),
			})
		if res.Error != nil {
			zap.L().Error("failed to persist order timeout",
				zap.String("order_id", o.ID),
				zap.Error(res.Error))
			done <- res.Error
			return
		}
		done <- nil
	}()

	return done
}

// CompletePayment finishes a pending order with its on-chain record. Late
// confirmations for orders already timed out are dropped.
func (s *Service) CompletePayment(ctx context.Context, orderID string, data BlockchainData) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", orderID, StatusPending).
		Updates(map[string]any{
			"status":              StatusCompleted,
			"current_status_date": now,
			"blockchain_data":     mustJSON(data),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		zap.L().Warn("dropping payment confirmation for non-pending order",
			zap.String("order_id", orderID))
	}
	return nil
}

// FailPayment fails a pending order with a structured error record. Terminal
// orders are never mutated.
func (s *Service) FailPayment(ctx context.Context, orderID string, cause OrderError) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", orderID, StatusPending).
		Updates(map[string]any{
			"status":              StatusFailed,
			"current_status_date": now,
			"error":               mustJSON(cause),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		zap.L().Warn("dropping payment failure for non-pending order",
			zap.String("order_id", orderID))
	}
	return nil
}
