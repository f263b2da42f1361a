// Package tzclock provides canonical timestamps and calendar arithmetic
// for a single fixed reference timezone.
//
// All values produced by this package are independent of the host
// machine's local timezone:
//
//   - Canonical format: 2006-01-02T15:04:05.000-07:00 (millisecond
//     precision, explicit offset, never "Z")
//   - Day boundaries and day arithmetic are computed in the reference zone
//   - Flexible parsing accepts time.Time, epoch milliseconds and strings,
//     including historical strings with out-of-range offset minutes
//
// The package is pure given its inputs and the injected Clock, which
// allows tests to pin "now" with FixedClock.
package tzclock
