// Package compose implements the container lifecycle manager on top of the
// docker compose CLI. It ensures the deployment's named services (database,
// API, reverse proxy) are running, stops them, hot-reloads a service's
// configuration in place, and runs one-off commands inside a service's
// context.
//
// Idempotency comes from the runtime itself: compose treats 'up' on an
// already-running service as a no-op, so the manager keeps no state of its
// own.
package compose
