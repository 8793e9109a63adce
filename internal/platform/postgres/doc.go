// Package postgres provides the PostgreSQL implementation of the
// snapshot storage interface defined in the internal/store package.
// It handles connection setup, embedded schema migrations, and data
// mapping between task records and database rows.
package postgres
