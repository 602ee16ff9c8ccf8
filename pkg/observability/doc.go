/*
Package observability provides tools for monitoring the chronicle engine.

It includes lifecycle hooks for logging composition and traversal events,
a helper to combine several hook sets, and Prometheus metrics built on the hooks.
*/
package observability
