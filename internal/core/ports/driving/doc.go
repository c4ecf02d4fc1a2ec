// Package driving defines the interfaces that surfaces (the CLI today)
// use to drive the sync client.
//
// Implementations live in internal/core/services.
package driving
