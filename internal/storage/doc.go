// Package storage provides the BBolt database behind statevault's local state.
//
// Database structure uses four buckets:
//   - config: format version, timestamps, device id (unencrypted)
//   - records: string-keyed application records (collection, settings, ...)
//   - images: cached coin images as JSON, keyed by item uuid
//   - ancestry: last synchronized snapshots used as the common ancestor
//     for three-way conflict detection
//
// Commit writes a whole changeset in one transaction, so a restore either
// lands completely or not at all.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
