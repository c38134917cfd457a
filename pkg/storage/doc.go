// Package storage owns the persistence concerns of the storefront: the
// relational database that backs the economy engine and the blob store that
// holds plugin artifacts and logos.
//
// Two relational drivers are supported, sqlite3 for single-node deployments
// and postgres for shared ones; both accept the $N placeholder syntax the
// queries in this repository use. The blob store is deliberately opaque to
// the engine: callers put bytes in and get a reference string back, and the
// engine persists only that reference.
package storage
