// Package security provides authorization and access control.
package security

import (
	"context"
	"fmt"
	"slices"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
)

// Permission is a capability string carried in the caller's token ("perms" claim).
type Permission string

const (
	PermissionRecordEvents Permission = "inventory.events.record"
	PermissionReadReports  Permission = "inventory.reports.read"
	PermissionClosePeriod  Permission = "inventory.period.close"

	// PermissionOverrideClose lets a caller close a period despite
	// overridable blockers, provided an audit reason is supplied.
	PermissionOverrideClose Permission = "inventory.period.override"
)

// AccessScope defines what the current caller may see and do.
type AccessScope struct {
	UserID string

	// IsAdmin bypasses organization filtering and permission checks
	IsAdmin bool

	// AllowedOrgIDs limits access to specific organizations.
	// Empty = no access (unless IsAdmin)
	AllowedOrgIDs []string

	Permissions []Permission
}

// NewAccessScope creates AccessScope from context.
func NewAccessScope(ctx context.Context) *AccessScope {
	user := appctx.GetUser(ctx)
	if user == nil {
		return &AccessScope{}
	}

	perms := make([]Permission, 0, len(user.Permissions))
	for _, p := range user.Permissions {
		perms = append(perms, Permission(p))
	}

	return &AccessScope{
		UserID:        user.UserID,
		IsAdmin:       user.IsAdmin,
		AllowedOrgIDs: user.OrgIDs,
		Permissions:   perms,
	}
}

// CanAccessOrg checks if user can access organization.
func (s *AccessScope) CanAccessOrg(orgID string) bool {
	return s.IsAdmin || slices.Contains(s.AllowedOrgIDs, orgID)
}

// HasPermission checks if the caller holds perm.
func (s *AccessScope) HasPermission(perm Permission) bool {
	return s.IsAdmin || slices.Contains(s.Permissions, perm)
}

// RequirePermission returns error if permission is missing.
func (s *AccessScope) RequirePermission(perm Permission) error {
	if !s.HasPermission(perm) {
		return apperror.NewForbidden(
			fmt.Sprintf("permission %s required", perm),
		).WithDetail("permission", string(perm))
	}
	return nil
}

// RequireOrg returns error if the caller may not act on orgID.
func (s *AccessScope) RequireOrg(orgID string) error {
	if !s.CanAccessOrg(orgID) {
		return apperror.NewForbidden("organization access denied").WithDetail("org_id", orgID)
	}
	return nil
}

// --- Context-based scope access ---

type scopeKey struct{}

// WithScope adds AccessScope to context.
func WithScope(ctx context.Context, scope *AccessScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// GetScope returns AccessScope from context.
func GetScope(ctx context.Context) *AccessScope {
	if v, ok := ctx.Value(scopeKey{}).(*AccessScope); ok {
		return v
	}
	return NewAccessScope(ctx)
}
