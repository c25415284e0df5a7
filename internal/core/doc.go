// Package core provides the product catalog model and the record store that
// keeps it in step with a spreadsheet.
//
// This package holds all domain logic independent of any UI or transport
// layer. It can be used by web handlers, CLI tools, or tests without
// modification.
//
// # Architecture
//
//   - Record: one product row. [RecordFromRow] and [Record.Values] convert
//     between records and sheet rows through a [Layout] resolved from the
//     header row.
//   - RecordStore: the in-memory collection for one worksheet. Load replaces
//     it; Create, Update and Delete stage intents; Commit pushes them.
//   - SheetClient: the storage boundary. Implementations live in the sheets
//     package.
//   - Audit: commit outcomes can be recorded in PostgreSQL via [AuditLog].
//
// # Commit
//
// A commit is not atomic. It issues updates, then deletes from the highest
// row down, then appends, attempting each independently. The result lists
// every operation; failures come back as a [PartialCommitError] and stay
// staged for the next commit.
//
// # Error Handling
//
// Failures wrap one of the sentinel errors ([ErrConnectivity], [ErrAuth],
// [ErrValidation], [ErrNotFound], [ErrLoad], [ErrPartialCommit], ...) so
// callers branch with errors.Is. [MapError] turns any error into a coded
// user message for display.
package core
