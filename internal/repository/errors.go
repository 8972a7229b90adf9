// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation service and handlers to distinguish between different
// failure scenarios. For example, ErrLockConflict indicates that a
// conditional update matched no row because another caller changed the
// slot first, while ErrNoFreeSlots signals plain exhaustion of the
// mintable supply.
package repository

import "errors"

// ErrSlotNotFound is returned when the requested mint index does not
// exist. Handlers should translate this into an HTTP 404 response.
var ErrSlotNotFound = errors.New("slot not found")

// ErrNoFreeSlots is returned when no slot is in the available state.
// This is exhaustion, not a race: re-requesting will not help until the
// reaper releases an abandoned lock or supply is extended.
var ErrNoFreeSlots = errors.New("no free slots")

// ErrLockConflict is returned when a conditional update affected zero
// rows: the row's status or lock id no longer matched what the caller
// believed. The caller lost a race and must re-request.
var ErrLockConflict = errors.New("lock conflict")
