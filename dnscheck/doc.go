// Package dnscheck implements the pre-deployment DNS check. Webroot-mode
// certificate issuance can only succeed when the target domain points at the
// host serving the ACME challenge, so the orchestrator verifies resolution
// before starting any service.
package dnscheck
