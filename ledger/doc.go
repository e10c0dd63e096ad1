// Package ledger provides implementations of the AuthorizationLedger
// consumer view. The in-memory ledger backs tests and single-process
// deployments; the file ledger adds a JSON snapshot on top of it for the
// operator CLI. Both honor the single-entry atomicity the engines assume:
// every commit replaces exactly one record envelope or one grant entry.
package ledger
