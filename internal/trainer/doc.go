// Package trainer is the backend side of the training-session link: a
// protocol simulator that registers model definitions, runs synthetic
// training jobs, and answers layer queries.
//
// Ownership boundary:
// - per-connection command dispatch and response writing
// - model/run storage behind the Store interface
// - training job execution and progress streaming
//
// The training metrics are synthetic; real optimization is out of
// scope for this backend.
package trainer
