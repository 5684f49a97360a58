// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrAdmission indicates a request was rejected by an admission-control gate
// (too many concurrent sessions, caller lacks a required role, empty repo set).
var ErrAdmission = errors.New("admission rejected")

// ErrConfiguration indicates a fatal, user-facing misconfiguration such as a
// missing forge token or malformed settings JSON. Never retried.
var ErrConfiguration = errors.New("configuration error")
