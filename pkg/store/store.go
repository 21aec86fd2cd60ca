// Package store defines the persistence medium the mapper stages its changes in.
//
// A Tx is an exclusive write context. Changes staged through Save and Delete are
// pending until the owner of the transaction calls Commit. A Tx must not be shared
// between goroutines.
package store

import (
	"context"

	"github.com/diwise/entity-mapper/pkg/types"
)

type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

type Tx interface {
	// Find returns all entities of a type, including changes staged in this transaction
	Find(ctx context.Context, entityType string) ([]types.Entity, error)
	Retrieve(ctx context.Context, entityType, remoteID string) (types.Entity, error)

	// Save stages an insert or update of the entity
	Save(ctx context.Context, e types.Entity) error
	Delete(ctx context.Context, e types.Entity) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
