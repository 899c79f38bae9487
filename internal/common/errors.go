package common

import "errors"

// Sentinel error kinds dispatched by the orchestrator (spec §7).
var (
	ErrConfig      = errors.New("config error")
	ErrTransport   = errors.New("transport error")
	ErrNotAllowed  = errors.New("not allowed by robots")
	ErrNotModified = errors.New("not modified")
	ErrParse       = errors.New("parse error")
	ErrValidation  = errors.New("validation error")
	ErrDuplicate   = errors.New("duplicate entity")
	ErrJob         = errors.New("job error")
	ErrFatal       = errors.New("fatal error")
)
