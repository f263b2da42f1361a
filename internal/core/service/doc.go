// Package service provides the store operations used by field-service
// collaborators (UI, report, ingestion, sync channel).
//
// Services contain the business rules and run them inside record-store
// transactions. They depend on the Store interface, so tests run against
// an in-memory store with a fixed clock.
//
// This package contains:
//
//   - UserService: personnel CRUD and environment-seeded admin bootstrap
//   - AuthService: password verification with per-user attempt limiting
//   - LifecycleService: order ingestion, task transitions, cancellation,
//     checklists and the expiration sweep
//   - SyncService: users/orders snapshot export and version-gated import
//   - BackupService: full-store backup envelope export and import
//
// Every mutation bumps the owning family's meta version exactly once, in
// the same transaction, or not at all.
package service
