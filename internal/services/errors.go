// Package services implements the reconciliation engine: the logic that
// decides whether an operation goes straight to the backend or into the
// durable offline queue, and that drains the queue when connectivity
// returns. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

var (
	// ErrNoItems is returned when a commit is attempted on an empty order.
	ErrNoItems = errors.New("order has no items")

	// ErrNoPaymentMethod is returned when a commit is attempted without a
	// selected payment method.
	ErrNoPaymentMethod = errors.New("no payment method selected")

	// ErrNoTransactionID is returned when a payment does not reference a
	// transaction.
	ErrNoTransactionID = errors.New("payment references no transaction id")

	// ErrOfflineStoreUnavailable indicates the local queue database could
	// not be opened: the terminal still works online, but anything attempted
	// without connectivity must fail loudly instead of being silently lost.
	ErrOfflineStoreUnavailable = errors.New("offline store unavailable; offline mode disabled")

	// ErrBackendUnavailable is returned for online-only operations attempted
	// while the backend is unreachable.
	ErrBackendUnavailable = errors.New("backend unreachable")

	// ErrTransactionNotFound indicates a recall or suspend referenced an id
	// unknown to both the backend and the local mirror.
	ErrTransactionNotFound = errors.New("transaction not found")
)
