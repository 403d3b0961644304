/*
Package observability turns workflow lifecycle hooks into Prometheus
metrics and structured log lines, and instruments sandboxes.
*/
package observability
