// Package certbootstrap implements the certificate-provisioning state
// machine that takes a domain from "no certificate" to "valid, trusted
// certificate" behind a TLS-terminating reverse proxy.
//
// The states are Absent, Dummy, Pending, Valid and Failed:
//
//   - Absent → Dummy: a 1-day self-signed placeholder is installed at the
//     exact live path the proxy references, resolving the circularity that
//     the proxy must run to serve ACME challenges but needs certificate
//     material to start.
//   - Dummy → Pending: the proxy is started and a real certificate is
//     requested from the ACME CA in webroot mode.
//   - Pending → Valid: the issued material replaces the placeholder at the
//     same path and the proxy reloads (not restarts) exactly once.
//   - Pending → Failed: issuance errors leave the placeholder serving;
//     already-started services are not rolled back.
//
// Re-running is idempotent: existing real material with enough remaining
// validity skips both placeholder generation and issuance. The presence
// check looks at the private key and full chain files, never at the
// directory alone.
package certbootstrap
