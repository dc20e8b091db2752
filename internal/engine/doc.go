// Package engine implements the SQL execution service.
//
// The service is an isolated execution context: it owns the SQLite store and
// is reachable only through a transport.Port. Nothing but encoded frames
// crosses that boundary.
//
// Single-consumer loop:
//  1. Run receives one frame at a time from the port.
//  2. The frame is decoded and routed by tag (initialize, execute).
//  3. The handler touches the store; only this goroutine ever does.
//  4. A response carrying the request's ID is posted back.
//
// Requests are therefore executed and answered strictly in arrival order.
// Failures of an individual statement are reported in the response envelope
// (success=false) and never stop the loop. A panic inside the loop is turned
// into a channel-level failure on the port, which every waiting caller observes.
package engine
