// Package store defines the persistence interfaces for the orchestration
// core and the error taxonomy shared by all implementations.
package store
