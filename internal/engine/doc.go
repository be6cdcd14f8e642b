// Package engine owns the active scan engine. It loads the signature
// database, publishes a reference-counted Handle that scans borrow, and
// swaps in a new Handle when the database directory changes, either on
// request or from a watcher or schedule. This package is internal; external
// consumers should use the stable facade in pkg/core.
package engine
