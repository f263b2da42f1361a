// Package notify provides the change notification bus.
//
// Every committed store change produces one Event ("users-changed" or
// "orders-changed") carrying the change-log reason and a canonical
// timestamp. Events are delivered:
//
//   - in-process, to every Subscription of the Bus (non-blocking; slow
//     subscribers lose events rather than stall writers)
//   - across processes, through a DirChannel: a directory per entity
//     family shared by every process using the same data directory, where
//     each event is one JSON file picked up by fsnotify watchers
//
// Delivery is best-effort. Failures are logged and never reach the writer.
package notify
