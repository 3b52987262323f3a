// Package session owns the client side of the training-session link.
//
// Ownership boundary:
// - connection lifecycle state machine and reconnect scheduling
// - request/response correlation keyed by requestId
// - liveness probing while the link is open
// - event fan-out to subscribers
//
// The transport and the pending-request registry are private to the
// Client; callers interact only through its operations and event
// subscriptions.
package session
