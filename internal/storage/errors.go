package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrTampered is returned when a row's stored content hash no longer matches
// its recomputed hash, e.g. an access_logs_v2 row edited outside the API.
var ErrTampered = errors.New("storage: content hash mismatch")
