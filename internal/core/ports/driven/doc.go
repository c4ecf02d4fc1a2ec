// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the client to function:
//
//   - Transport: The persistent bidirectional event channel
//   - IdentityProvider: User id and bearer token, read on every connect
//
// # Optional Interfaces
//
// These can be nil - the client degrades gracefully:
//
//   - HealthProber: HTTP /health fallback. Without it, health checks only
//     work while the channel is connected.
//   - IdentityWatcher: Identity change notifications. Without it, a new
//     identity is only picked up on the next reconnect.
//   - MetricsRecorder: Instrumentation. Defaults to a no-op.
//
// Server actions (SaveFunc, DeleteFunc) are passed per call and are opaque
// to the core: only success or failure is inspected.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
