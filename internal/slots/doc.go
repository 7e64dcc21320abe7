// Package slots provides durable key-value slot backends for the annotation
// store: an in-memory map, one JSON file per slot on a filesystem, and a
// Redis key per slot. The SQLite backend lives in internal/db.
package slots
