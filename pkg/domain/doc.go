/*
Package domain contains the core models of the execution history subsystem.

It defines the ephemeral run-state snapshot produced by the action runner (LiveAction),
the durable historical record built from it (Execution), and the definitions an
execution is enriched with (Action, Runner, Rule, Event, EventInstance, EventType).
This package is kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - LiveAction: What the runner reports about one action invocation.
  - Execution: The durable record, carrying lineage links (Parent, Children) and
    enrichment snapshots.
  - Decomposition: The split of a LiveAction into promoted top-level fields and the
    nested "liveaction" sub-document.
  - DescendantOrder: The closed set of orderings for lineage traversal results.
*/
package domain
