// Package geordon owns the client engine.
//
// Ownership boundary:
// - difficulty grid and row-fetch cursor
//
// - operator command parsing
//
// - dispatch of inbound messages and command lines
//
// Lifecycle order:
// - dial -> ReadLoop + CommandLoop -> Run
//
// - Run is the only writer of grid, cursor, pose and ping state.
//
// - producer exhaustion on either queue ends Run with an error.
//
// Framing and the message catalogue live in internal/protocol.
package geordon
