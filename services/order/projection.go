package order

import (
	"encoding/json"
	"time"

	"marketplace-backend/pkg/errutil"
)

// View is the API-facing shape of a persisted order. Opened orders are never
// rendered; the read paths filter them out before projection.
type View struct {
	ID     string    `json:"id"`
	Origin Origin    `json:"origin"`
	Type   OrderType `json:"type"`
	Status Status    `json:"status"`

	OfferID string `json:"offer_id"`
	Amount  int64  `json:"amount"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Value is the decoded AssetValue for marketplace orders and the raw
	// string for external ones.
	Value any `json:"value,omitempty"`

	BlockchainData *BlockchainData `json:"blockchain_data,omitempty"`
	Error          *OrderError     `json:"error,omitempty"`

	CreatedDate    time.Time  `json:"created_date"`
	StatusDate     time.Time  `json:"status_date"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

// Project renders an order for the API. The origin tag picks the value codec
// and metadata shape.
func Project(o *Order) (*View, error) {
	if o.Status == StatusOpened {
		return nil, errutil.Internal("opened orders are not projectable")
	}

	v := &View{
		ID:             o.ID,
		Origin:         o.Origin,
		Type:           o.Type,
		Status:         o.Status,
		OfferID:        o.OfferID,
		Amount:         o.Amount,
		CreatedDate:    o.CreatedAt,
		StatusDate:     o.StatusDate(),
		ExpirationDate: o.ExpirationDate(),
	}

	switch o.Origin {
	case OriginMarketplace:
		var meta Meta
		if len(o.Meta) > 0 {
			if err := json.Unmarshal(o.Meta, &meta); err != nil {
				return nil, err
			}
		}
		v.Title = meta.Title
		v.Description = meta.Description

		if o.Value != "" {
			var value AssetValue
			if err := json.Unmarshal([]byte(o.Value), &value); err != nil {
				return nil, err
			}
			v.Value = value
		}
	case OriginExternal:
		v.Value = o.Value
	default:
		return nil, errutil.Internal("unknown order origin")
	}

	if len(o.BlockchainData) > 0 {
		var data BlockchainData
		if err := json.Unmarshal(o.BlockchainData, &data); err != nil {
			return nil, err
		}
		v.BlockchainData = &data
	}

	if len(o.Error) > 0 {
		var orderErr OrderError
		if err := json.Unmarshal(o.Error, &orderErr); err != nil {
			return nil, err
		}
		v.Error = &orderErr
	}

	return v, nil
}
