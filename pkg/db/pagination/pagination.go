package pagination

import (
	"encoding/base64"
	"encoding/json"
)

type Pagination struct {
	Before string `form:"before"`
	After  string `form:"after"`
	Limit  int    `form:"limit,default=25" validate:"gte=1,lte=100"` // Min 1, Max 100
}

// Cursor pins a position in a (status_date DESC, id DESC) ordered listing.
type Cursor struct {
	StatusDate string `json:"status_date,omitempty"`
	ID         string `json:"id,omitempty"`
}

type PageInfo struct {
	NextCursor     string `json:"next,omitempty"`
	PreviousCursor string `json:"previous,omitempty"`
	HasMore        bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// BuildCursorPageInfo trims an over-fetched page down to limit and derives
// paging info from the rows that remain.
func BuildCursorPageInfo[T any](data []*T, limit int, extractCursor func(*T) Cursor) ([]*T, *PageInfo, error) {
	if len(data) == 0 {
		return data, &PageInfo{HasMore: false}, nil
	}

	hasMore := false
	if limit > 0 && len(data) > limit {
		hasMore = true
		data = data[:limit]
	}

	next, err := EncodeCursor(extractCursor(data[len(data)-1]))
	if err != nil {
		return nil, nil, err
	}
	previous, err := EncodeCursor(extractCursor(data[0]))
	if err != nil {
		return nil, nil, err
	}

	return data, &PageInfo{
		HasMore:        hasMore,
		NextCursor:     next,
		PreviousCursor: previous,
	}, nil
}
