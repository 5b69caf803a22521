/*
Package observability exposes the Prometheus instruments of the swapflow service.

Every component accepts a *Metrics and all methods are safe on a nil receiver,
so metrics stay optional in tests and tools.
*/
package observability
