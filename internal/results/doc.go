// Package results persists grading outcomes and answers the history queries.
//
// Store is implemented twice: SQLiteStore (default, embedded schema, WAL,
// retried writes on SQLITE_BUSY) and PostgresStore (pgx pool). Both keep
// case-folded copies of the student name and test title so substring filters
// match regardless of case, including Romanian diacritics. Records are listed
// newest first; summaries omit the annotated image.
package results
