// Package health implements the deployment health verifier: bounded polling
// of an HTTP liveness endpoint for the literal token "healthy".
//
// The verifier returns a boolean, never an error. Whether a failed check is
// advisory or gates the next step (certificate issuance is rate-limited by
// the CA and should not be wasted on a broken backend) is the orchestrator's
// decision.
package health
