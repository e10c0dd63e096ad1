// Package interfaces defines the core types and collaborator interfaces for
// the medchain key-management system. It provides the contract between
// components without implementation details.
//
// Two external collaborators are modeled here and injected into the engines
// rather than reached through process-wide singletons:
//
//   - AuthorizationLedger: the external ledger holding per-record envelope
//     entries and per-recipient access grants. Each write is atomic at
//     single-entry granularity only; no multi-entry transaction exists.
//   - StorageBackend: the external content-addressable blob store holding
//     encrypted document bodies, keyed by the SHA-256 hash of the stored
//     bytes.
//
// Cached views of ledger state must be treated as possibly stale: the
// engines re-fetch record and grant entries before every rotation.
package interfaces
