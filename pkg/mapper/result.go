package mapper

import (
	"github.com/diwise/entity-mapper/pkg/types"
)

// Result describes the changes a mapping has staged
type Result struct {
	// Entities holds one entity per distinct record, in the order they were first seen
	Entities []types.Entity

	Created []types.Entity
	Updated []types.Entity
	Deleted []types.Entity

	// Skipped counts records that lacked a usable remote identifier
	Skipped int
}

// HasChanges returns true if the mapping created, updated or deleted anything
func (r *Result) HasChanges() bool {
	return len(r.Created) > 0 || len(r.Updated) > 0 || len(r.Deleted) > 0
}
