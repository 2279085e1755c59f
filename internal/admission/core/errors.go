// Package core defines sentinel errors.
package core

import "errors"

// ErrInvalidLimits indicates limit parameters that must prevent startup.
var ErrInvalidLimits = errors.New("invalid limits")

// ErrClientNotFound indicates stats were requested for a client with no
// live bucket.
var ErrClientNotFound = errors.New("client not found")
