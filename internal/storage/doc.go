// Package storage provides the record store for users and orders.
//
// The store is an embedded Badger database holding two tables and their
// meta history:
//
//   - users, orders: one JSON row per record, keyed by numeric code
//   - usersMeta, ordersMeta: one row per meta version, holding the
//     change-log lines appended at that version
//
// Guarantees:
//
//   - Meta-coupled writes: Mutate runs the record change and the meta
//     version bump in one serializable transaction. An aborted transaction
//     leaves neither visible.
//   - Serialized writers: write transactions run one at a time per
//     process; readers see committed state only.
//   - Fire-and-forget notification: change notifications are delivered
//     after commit and never fail or block the transaction.
package storage
