package auth

import (
	"context"
	"strings"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// Ensure PrincipalList implements the Authorizer interface.
var _ driven.Authorizer = (*PrincipalList)(nil)

// PrincipalList allows the listed principals and denies everyone else.
//
// Entries are either a bare principal, which is allowed on every
// collection, or "principal@collection", which is allowed on that
// collection only. The global scope (empty collection) requires a bare
// entry.
type PrincipalList struct {
	global      map[string]bool
	collections map[string]map[string]bool
}

// NewPrincipalList creates an allow-list authorizer.
func NewPrincipalList(entries []string) *PrincipalList {
	p := &PrincipalList{
		global:      make(map[string]bool),
		collections: make(map[string]map[string]bool),
	}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		principal, collection, scoped := strings.Cut(entry, "@")
		if !scoped {
			p.global[principal] = true
			continue
		}
		if p.collections[collection] == nil {
			p.collections[collection] = make(map[string]bool)
		}
		p.collections[collection][principal] = true
	}
	return p
}

// Can reports whether principal may perform action on collection.
// Every action is treated alike.
func (p *PrincipalList) Can(_ context.Context, principal, _, collection string) (bool, error) {
	if principal == "" {
		return false, nil
	}
	if p.global[principal] {
		return true, nil
	}
	return collection != "" && p.collections[collection][principal], nil
}

// NewAuthorizer picks the authorizer for the settings: an allow-list when
// principals are configured, AllowAll otherwise.
func NewAuthorizer(settings domain.AuthSettings) driven.Authorizer {
	if len(settings.Principals) == 0 {
		return NewAllowAll()
	}
	return NewPrincipalList(settings.Principals)
}
