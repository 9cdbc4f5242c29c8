package offer

import (
	"time"

	"gorm.io/datatypes"
)

type OfferType string

const (
	TypeEarn  OfferType = "earn"
	TypeSpend OfferType = "spend"
)

func (t OfferType) String() string {
	switch t {
	case TypeEarn, TypeSpend:
		return string(t)
	default:
		return ""
	}
}

// Cap bounds how many orders an offer accepts, globally and per user.
type Cap struct {
	Total   int64 `gorm:"column:total" json:"total"`
	PerUser int64 `gorm:"column:per_user" json:"per_user"`
}

type Offer struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(40)" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"-"`

	AppID  string    `gorm:"column:app_id;index;not null" json:"app_id"`
	Type   OfferType `gorm:"column:type;type:varchar(8);not null" json:"type"`
	Amount int64     `gorm:"column:amount;not null" json:"amount"`

	Cap Cap `gorm:"embedded;embeddedPrefix:cap_" json:"cap"`

	Title       string `gorm:"column:title;type:varchar(120)" json:"title,omitempty"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`
	Image       string `gorm:"column:image;type:text" json:"image,omitempty"`

	// ContentType names the earn experience (quiz, tutorial, poll);
	// Content carries its form rules. Both empty for spend offers.
	ContentType string         `gorm:"column:content_type;type:varchar(40)" json:"content_type,omitempty"`
	Content     datatypes.JSON `gorm:"column:content" json:"content,omitempty"`

	// WalletAddress receives the user's asset for spend offers.
	WalletAddress string `gorm:"column:wallet_address;type:varchar(80)" json:"wallet_address,omitempty"`

	IsActive bool `gorm:"column:is_active" json:"is_active"`
}
