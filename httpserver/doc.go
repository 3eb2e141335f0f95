// Package httpserver provides the optional ops server a deployment or
// renewal daemon exposes while running: liveness and readiness probes,
// drain/undrain control for load balancers, and a JSON snapshot of the
// deployment report at /status.
package httpserver
