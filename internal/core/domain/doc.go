// Package domain defines the core domain models for the field-service store.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - User: personnel record with role and speciality rules
//   - Order: maintenance work order owning an ordered task sequence
//   - Task: unit of work with pending / in-progress / completed states
//   - MetaRecord: per-family version counter and change log entry
//   - Errors: domain error taxonomy (validation, conflict, not found, format)
//
// Derived order state (status, expiration window) is computed by pure
// functions over the task list and order info so it can never drift from
// the source data.
package domain
