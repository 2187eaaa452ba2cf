// Package tenancy implements the §4.10 scope/visibility filter table: the
// three caller-requested search scopes (public, mine, all) crossed with
// the three image visibilities (private, public, public_admin), plus the
// ownership/admin checks the HTTP surface needs for mutating requests.
package tenancy

import (
	"errors"

	"github.com/visioncap/visioncap"
)

// ErrUnauthenticated is returned when an anonymous caller requests a scope
// that requires a known caller identity.
var ErrUnauthenticated = errors.New("tenancy: unauthenticated")

// ErrForbidden is returned when an authenticated caller who is not the
// image owner attempts to mutate it, unless CanMutate's admin exception
// for public_admin images applies.
var ErrForbidden = errors.New("tenancy: forbidden")

// RequiresCaller reports whether scope needs a known, authenticated
// caller identity (mine and all do; public does not).
func RequiresCaller(scope visioncap.Scope) bool {
	return scope == visioncap.ScopeMine || scope == visioncap.ScopeAll
}

// CheckScope validates that an anonymous caller isn't requesting a scope
// that requires authentication, per §4.10's "Anonymous callers requesting
// mine or all fail with unauthenticated."
func CheckScope(scope visioncap.Scope, hasCaller bool) error {
	if RequiresCaller(scope) && !hasCaller {
		return ErrUnauthenticated
	}
	return nil
}

// CanView reports whether callerID (absent when hasCaller is false) may
// view record under the public/mine/all filter semantics of §4.10, used
// by the single-image GET/download/thumbnail routes.
func CanView(record visioncap.ImageRecord, callerID string, hasCaller bool) bool {
	if record.DeletedAt != nil {
		return false
	}
	if record.Visibility == visioncap.VisibilityPublic || record.Visibility == visioncap.VisibilityPublicAdmin {
		return true
	}
	return hasCaller && record.OwnerID == callerID
}

// CanMutate reports whether callerID may PATCH or DELETE record: the
// owner always may; any other caller may only when the image is
// public_admin and the caller is an admin, and otherwise gets ErrForbidden
// (admins included, for private and public images they do not own).
func CanMutate(record visioncap.ImageRecord, callerID string, hasCaller, isAdmin bool) error {
	if !hasCaller {
		return ErrUnauthenticated
	}
	if record.OwnerID == callerID {
		return nil
	}
	if record.Visibility == visioncap.VisibilityPublicAdmin && isAdmin {
		return nil
	}
	return ErrForbidden
}
