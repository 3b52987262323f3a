// Package protocol owns the wire contract for the training session link.
//
// Ownership boundary:
// - envelope shape and JSON codec
// - command/response payload schemas
// - model definition document shape and validation
package protocol
