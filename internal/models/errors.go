package models

import "errors"

// ErrValidation marks input the caller got wrong: missing required fields,
// malformed records, out-of-range parameters. The stores refuse to persist
// anything wrapping it and the API surface maps it to a 400.
var ErrValidation = errors.New("validation failed")
