// Package task implements the task ledger and the dispatcher that runs
// agent pipelines in the background. The ledger owns every mutation of a
// task record: creation, progress callbacks from agents, cancellation, and
// the polling progress stream. The dispatcher tracks a cancellation handle
// per running task so an owner's cancel request genuinely interrupts the
// in-flight pipeline instead of only flipping the stored status.
package task
