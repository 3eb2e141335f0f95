// Package orchestrator sequences a full deployment run: DNS preflight,
// credential provisioning, proxy configuration, service startup, the
// pre-issuance health gate, certificate bootstrap and artifact archival.
// A cross-process file lock guarantees a single run per state directory,
// and every step outcome is recorded in a Report served by the ops server.
package orchestrator
