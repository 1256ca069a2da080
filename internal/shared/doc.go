// Package shared contains the error taxonomy used by the stores, the broadcast
// pipeline and the adapters.
//
// # Sentinels
//
//   - ErrOutOfRange: positional group index outside [0, size)
//   - ErrInvalidTime: trigger hour or minute outside the day
//   - ErrValidation: rejected input (empty text, empty patch, bad payload)
//   - ErrNotFound: missing resource
//   - ErrUnauthorized: missing or wrong admin credentials
//   - ErrDelivery: a single recipient could not be reached
//   - ErrPersistence: a load or save of local state failed
//   - ErrInternal: anything else
//
// OutOfRange, InvalidTime and Validation are returned synchronously to the
// caller that asked for a mutation. Delivery and Persistence failures are
// logged where they happen and never abort the surrounding operation.
//
// # Classification
//
//	switch shared.KindOf(err) {
//	case shared.KindOutOfRange:
//	    // 404
//	case shared.KindInvalidTime, shared.KindValidation:
//	    // 400
//	}
//
// When several kinds are present (errors.Join), KindOf returns the first one in
// this order: Canceled, OutOfRange, InvalidTime, Validation, NotFound,
// Unauthorized, Delivery, Persistence, Internal.
//
// # Marking
//
// MarkKind attaches a kind to a third-party error without losing it:
//
//	if err := os.Rename(tmp, path); err != nil {
//	    return shared.MarkKind(err, shared.KindPersistence)
//	}
//
// Keep messages lowercase and without punctuation so they compose when wrapped.
package shared
