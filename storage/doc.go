// Package storage archives deployment artifacts to pluggable backends.
//
// After a successful run the orchestrator archives the generated credential
// bundle and issued-certificate metadata so a host rebuild can recover them.
// Backends are addressed by URI:
//
//   - file:///var/lib/deployctl/archive/
//   - s3://bucket/prefix?region=eu-central-1
//   - vault://vault.example.com:8200/secret/deployments
//
// Artifacts are named and namespaced by kind (config or secret). A
// multi-backend stores to every available backend for redundancy and
// fetches from the first that has the artifact.
package storage
