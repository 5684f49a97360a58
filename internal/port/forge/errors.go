package forge

import "errors"

// ErrUnsupportedProvider indicates the Registry has no Factory registered
// for the requested provider tag.
var ErrUnsupportedProvider = errors.New("forge: unsupported provider")

// ErrMissingToken indicates a Client call was attempted without a bearer
// token configured. This is a fatal configuration error, never retried.
var ErrMissingToken = errors.New("forge: missing bearer token")
