package auth

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure AllowAll implements the Authorizer interface.
var _ driven.Authorizer = (*AllowAll)(nil)

// AllowAll permits every action. Used for single-user installs.
type AllowAll struct{}

// NewAllowAll creates an authorizer that never denies.
func NewAllowAll() *AllowAll {
	return &AllowAll{}
}

// Can always returns true.
func (a *AllowAll) Can(_ context.Context, _, _, _ string) (bool, error) {
	return true, nil
}
