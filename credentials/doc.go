// Package credentials implements the credential provisioner: it generates
// the random secrets a deployment needs (database password, signing key,
// service API key) together with the configuration values derived from the
// target domain, and persists them as the env file every container reads at
// start.
//
// Secrets are drawn exclusively from crypto/rand. A failing random source is
// a fatal error; there is deliberately no fallback to a weaker source.
//
// An existing env file is reused on re-invocation so that re-running a
// deployment does not rotate credentials under services that already hold
// them. Regeneration has to be requested explicitly.
package credentials
