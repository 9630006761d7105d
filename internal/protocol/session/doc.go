// Package session owns the client side of one controller connection.
//
// Ownership boundary:
// - connect + greeting handshake
// - message send/receive over the frame codec
// - ordered handoff queues between producer goroutines and the dispatch loop
package session
