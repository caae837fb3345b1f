package admin

import "errors"

var (
	ErrAdminNotFound = errors.New("admin not found")
	ErrAdminInactive = errors.New("admin account is inactive")
	ErrInternal      = errors.New("internal error")
)
