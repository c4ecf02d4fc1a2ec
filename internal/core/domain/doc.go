// Package domain defines the core entities for the docsync client.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded document and its lifecycle status
//   - Enhancement: Progress and result data attached 1:1 to a Document
//   - OptimisticUpdate: A speculative mutation awaiting server settlement
//   - SocketState: The observable state of the persistent channel
//   - Channel: A ref-counted subscription key
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
