// Package proxyconf renders the reverse-proxy configuration artifact for a
// deployment: an nginx site templated with the target domain, referencing
// the live certificate paths, serving the ACME challenge webroot and the
// health passthrough on plain HTTP, and forwarding everything else to the
// API upstream over TLS with rate limiting and standard security headers.
package proxyconf
