package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Origin tags where an order came from. The set is closed: every
// origin-dependent behavior (value codec, projection shape) dispatches on
// this tag through an explicit switch.
type Origin string

const (
	OriginMarketplace Origin = "marketplace"
	OriginExternal    Origin = "external"
)

type OrderType string

const (
	TypeEarn  OrderType = "earn"
	TypeSpend OrderType = "spend"
)

type Status string

const (
	StatusOpened    Status = "opened"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	openedTTL  = 10 * time.Minute
	pendingTTL = 45 * time.Second
)

// Meta is the marketplace-facing descriptive payload copied from the offer
// at creation time.
type Meta struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// AssetValue is the structured value record carried by marketplace orders.
// External orders carry a raw string instead.
type AssetValue struct {
	Amount int64     `json:"amount"`
	Type   OrderType `json:"type"`
}

// BlockchainData records the on-chain identifiers attached once payment has
// been broadcast.
type BlockchainData struct {
	TransactionID    string `json:"transaction_id"`
	RecipientAddress string `json:"recipient_address"`
}

// OrderError is the structured failure record persisted on failed orders.
type OrderError struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

var timeoutError = OrderError{
	Code:    "order_timeout",
	Error:   "OrderTimeout",
	Message: "order was not confirmed before its deadline",
}

type Order struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(40)"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	AppID   string `gorm:"column:app_id;index;not null"`
	UserID  string `gorm:"column:user_id;index:idx_orders_user_offer;not null"`
	OfferID string `gorm:"column:offer_id;index:idx_orders_user_offer;index;not null"`

	Origin Origin    `gorm:"column:origin;type:varchar(16);not null"`
	Type   OrderType `gorm:"column:type;type:varchar(8);not null"`
	Amount int64     `gorm:"column:amount;not null"`

	Status Status `gorm:"column:status;type:varchar(12);index;not null"`

	Meta datatypes.JSON `gorm:"column:meta"`

	// Value encoding depends on Origin: marketplace orders carry a
	// JSON-encoded AssetValue, external orders a raw string.
	Value string `gorm:"column:value;type:text"`

	BlockchainData datatypes.JSON `gorm:"column:blockchain_data"`
	Error          datatypes.JSON `gorm:"column:error"`

	// CurrentStatusDate is set on every transition out of opened; nil
	// while the order has never left its initial state.
	CurrentStatusDate *time.Time `gorm:"column:current_status_date"`
}

func (Order) TableName() string { return "orders" }

// NewOrderID builds a prefixed, collision-resistant order id.
func NewOrderID(node *snowflake.Node) string {
	return fmt.Sprintf("order_%s", node.Generate().String())
}

// StatusDate is the timestamp of the most recent transition, falling back to
// the creation time for orders that never left opened.
func (o *Order) StatusDate() time.Time {
	if o.CurrentStatusDate != nil {
		return *o.CurrentStatusDate
	}
	return o.CreatedAt
}

// ExpirationDate is a pure function of status and the status dates: opened
// orders expire ten minutes after creation, pending orders forty-five
// seconds after entering pending, terminal orders never.
func (o *Order) ExpirationDate() *time.Time {
	switch o.Status {
	case StatusOpened:
		t := o.CreatedAt.Add(openedTTL)
		return &t
	case StatusPending:
		t := o.StatusDate().Add(pendingTTL)
		return &t
	default:
		return nil
	}
}

// Expired reports whether the order is past its deadline at now.
func (o *Order) Expired(now time.Time) bool {
	deadline := o.ExpirationDate()
	return deadline != nil && now.After(*deadline)
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(b)
}

// encodeValue applies the origin-specific value codec.
func encodeValue(origin Origin, amount int64, orderType OrderType) string {
	switch origin {
	case OriginMarketplace:
		b, _ := json.Marshal(AssetValue{Amount: amount, Type: orderType})
		return string(b)
	default:
		return fmt.Sprintf("%d", amount)
	}
}
