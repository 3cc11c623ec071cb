// Package session owns the editor's link to the tour server: one persistent
// websocket carrying actions out and push messages in, plus the separate
// HTTP request used for file uploads.
//
// A [Conn] never blocks its callers. Send queues the encoded action and the
// write pump delivers it once a connection is open; queued actions survive
// reconnects. Decoded push messages arrive on [Conn.Inbox] in delivery
// order, and the editor drains that channel from its main loop so that all
// state changes happen on one goroutine.
package session
