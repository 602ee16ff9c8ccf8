/*
Package chronicle keeps the durable history of action executions.

A runner reports each action invocation as a live action: an ephemeral, mutable
snapshot of its status, parameters and result. Chronicle turns every live action
into an execution record, enriches it with snapshots of the definitions that
caused it (action, runner, rule, event chain), links it under the execution that
spawned it, and answers lineage questions over the resulting tree.

# Concept

The Service sits on two ports: an ExecutionRepository that stores records and a
Catalog that resolves definitions. Both have in-memory, file, SQLite and Redis
adapters under pkg/adapters. Child links are appended atomically by repositories
that support it, and otherwise serialized per parent by a lineage.Linker,
optionally backed by a distributed lock.

# Usage

	svc := chronicle.New(
		chronicle.WithCatalog(catalog),
		chronicle.WithRepository(repo),
	)

	// A new live action becomes a record.
	exec, err := svc.CreateExecution(ctx, live, true)

	// Later reports of the same live action update it in place.
	exec, err = svc.UpdateExecution(ctx, live, true)

	// Everything the execution spawned, two levels deep, sorted by start time.
	tree, err := svc.GetDescendants(ctx, exec.ID, 2, domain.OrderSorted)

# Observability

Lifecycle hooks report creations, updates, skipped enrichments and traversals;
pkg/observability turns them into log lines and Prometheus metrics. Every
Service operation is traced with OpenTelemetry.
*/
package chronicle
