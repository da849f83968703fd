package repositories

import "errors"

var ErrNotFound = errors.New("record not found")

// ErrDuplicateNumber reports a business number already taken in the store.
var ErrDuplicateNumber = errors.New("duplicate business number")

// ErrAlreadyExists reports a second document for the same owner.
var ErrAlreadyExists = errors.New("document already exists")

// ErrVersionConflict reports a lost compare-and-set on a booking.
var ErrVersionConflict = errors.New("booking changed concurrently")

// ErrNotRefundable reports a refund the ledger row can no longer absorb.
var ErrNotRefundable = errors.New("transaction cannot absorb refund")
