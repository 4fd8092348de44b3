// Package session multiplexes commands to one brick over one link.
//
// Ownership boundary:
// - message counter sequencing
// - reply correlation and the stash of out-of-order replies
// - sync policy (STD/SYNC/ASYNC) and reply status classification
//
// Engines created with Clone share the link, the counter and the stash.
// Only one goroutine reads the wire at a time; the counter and stash locks
// are never held across a transport read.
package session
