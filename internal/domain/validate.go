package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidItem indicates a data item that violates the ingestion contract.
var ErrInvalidItem = errors.New("domain: invalid data item")

// ValidateItem enforces the ingestion contract: every stored item carries a
// valid visibility level and ownership fields consistent with it, before any
// chunk is created. Items failing this check must be rejected outright.
func ValidateItem(it DataItem) error {
	if strings.TrimSpace(it.DataType) == "" {
		return fmt.Errorf("%w: data_type is required", ErrInvalidItem)
	}
	if strings.TrimSpace(it.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidItem)
	}
	if !it.Visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility_level %q", ErrInvalidItem, it.Visibility)
	}
	switch it.Visibility {
	case VisibilityPrivate, VisibilityCoachOnly:
		if it.CoachID == "" && it.ClientID == "" {
			return fmt.Errorf("%w: %s items require a coach or client owner", ErrInvalidItem, it.Visibility)
		}
	case VisibilityOrgVisible:
		if it.OrganizationID == "" {
			return fmt.Errorf("%w: org_visible items require an organization", ErrInvalidItem)
		}
	}
	return nil
}
