// Package retention reclaims archive segments that no reader still needs.
//
// A Controller runs one tick per interval. Each tick moves through
//
//	Idle -> Reporting -> Locating -> Planning -> Purging -> Idle
//
// Reporting snapshots the host counters registry. Locating finds the active
// recording. Planning computes how many whole segments lie behind the
// segment currently being written. Purging asks the archive to delete them,
// stopping at most one blocking replay session and retrying once.
//
// A failed tick is logged, counted and published as an event; it never
// stops the controller, and the next tick recomputes everything from
// scratch.
package retention
