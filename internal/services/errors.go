package services

import "errors"

// Sentinel errors the handlers map onto HTTP statuses. Authorization
// failures are deliberately distinct so callers can surface "not the
// owner", "grant expired" and "not admin" differently.
var (
	ErrNotFound         = errors.New("record not found")
	ErrNoFamily         = errors.New("user has no family")
	ErrNotOwner         = errors.New("not the owner")
	ErrGrantExpired     = errors.New("permission grant expired")
	ErrNotOwnerOrAdmin  = errors.New("only the item owner or family admin may decide")
	ErrNotAdmin         = errors.New("only the family admin may perform this action")
	ErrSelfRequest      = errors.New("cannot request permission for own items")
	ErrDuplicatePending = errors.New("a pending request already exists")
	ErrNotPending       = errors.New("request has already been decided")
	ErrSelfRemoval      = errors.New("admin cannot remove themself")
	ErrAdminLeaving     = errors.New("transfer admin rights before leaving")
	ErrWrongFamily      = errors.New("record belongs to another family")
)
