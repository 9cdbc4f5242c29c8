package order

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace-backend/pkg/errutil"
	"marketplace-backend/services/offer"
)

// FormValidator checks a submitted earn form against the offer's content
// rules.
type FormValidator interface {
	Validate(ctx context.Context, off *offer.Offer, form map[string]any) error
}

// contentRules is the shape of the offer content an earn experience declares.
type contentRules struct {
	Fields []struct {
		Name     string `json:"name"`
		Required bool   `json:"required"`
	} `json:"fields"`
}

type contentValidator struct{}

func NewFormValidator() FormValidator { return contentValidator{} }

func (contentValidator) Validate(_ context.Context, off *offer.Offer, form map[string]any) error {
	if len(off.Content) == 0 {
		return nil
	}

	var rules contentRules
	if err := json.Unmarshal(off.Content, &rules); err != nil {
		return errutil.Internal("offer content rules are malformed", errutil.WithErr(err))
	}

	var details []errutil.Detail
	for _, field := range rules.Fields {
		if !field.Required {
			continue
		}
		v, ok := form[field.Name]
		if !ok || v == nil || v == "" {
			details = append(details, errutil.Detail{
				Field:   field.Name,
				Message: fmt.Sprintf("%s is required", field.Name),
			})
		}
	}

	if len(details) > 0 {
		return errutil.ValidationFailed("submitted form is invalid", errutil.WithDetails(details...))
	}
	return nil
}
