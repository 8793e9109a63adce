// Package store defines the snapshot persistence interface for the
// batch processor. Implementations abstract the underlying storage
// mechanism so the scheduling logic stays independent of whether state
// lands in a JSON file or a database.
package store
