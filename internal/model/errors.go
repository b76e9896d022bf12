package model

import "errors"

// ErrInvalidCredentials is the single outcome of a failed secret
// authentication or refresh, whatever the underlying cause.
var ErrInvalidCredentials = errors.New("invalid credentials")
