/*
Package ports defines the driven ports (interfaces) for the Chronicle engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, definition catalogs and
notification channels.

# Key Interfaces

  - ExecutionRepository: Persists execution records and answers key and filter lookups.
  - ChildAppender: Optional repository capability for an atomic child-list append.
  - Catalog: Typed lookups for action, runner, rule and event definitions.
  - Publisher / Subscriber: Change notifications emitted after repository writes.
  - DistributedLocker: Provides distributed locking for concurrent parent updates.
  - ExecutionService: The operations exposed to transport adapters (HTTP, MCP).
*/
package ports
