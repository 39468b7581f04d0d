/*
Package observability provides tools for monitoring plan execution.

It builds domain.LifecycleHooks that write structured slog records and
record Prometheus metrics for every step the executor applies.
*/
package observability
