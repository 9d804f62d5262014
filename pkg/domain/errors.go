package domain

import "errors"

// ErrSessionNotFound is returned when a session key cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrVehicleNotFound is returned when a vehicle id does not resolve to a catalog entry.
var ErrVehicleNotFound = errors.New("vehicle not found")

// ErrInvalidVehicle is returned when a vehicle fails validation before being seeded.
var ErrInvalidVehicle = errors.New("invalid vehicle")

// ErrUpstream marks failures of the catalog or the calculation service.
// The dialogue recovers from them with a generic reply.
var ErrUpstream = errors.New("upstream failure")
