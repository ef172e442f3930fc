// Package store implements the persistence gateway for documents, chunks and
// embeddings on PostgreSQL + pgvector.
//
// Design:
//   - Every write runs inside a caller-owned Tx value obtained from Begin.
//     A Tx wraps exactly one pooled connection and must be finished exactly
//     once with Commit or Rollback; misuse surfaces as ErrProtocolViolation.
//   - Each database operation has a typed parameter struct (no untyped
//     parameter bags), so mistyped calls fail at compile time rather than at
//     the database boundary.
//   - Constraint violations are mapped to *ProcedureError with the PostgreSQL
//     error code; transport failures are mapped to ErrConnection. The gateway
//     never retries inside an open transaction - retrying a half-applied
//     statement is unsafe. Retries belong to top-level callers, on a fresh Tx.
//
// Store is safe for concurrent use by multiple goroutines; individual Tx
// values are not and must stay confined to the operation that opened them.
package store
