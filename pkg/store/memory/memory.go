// Package memory provides an in-process store. Only one transaction can be open at a
// time and staged changes become visible to other transactions on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/diwise/entity-mapper/pkg/errors"
	"github.com/diwise/entity-mapper/pkg/store"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/entity-mapper/pkg/types/entities"
)

type memoryStore struct {
	mu        sync.RWMutex
	committed map[string]map[string]types.Entity

	writer chan struct{}
}

func New() store.Store {
	return &memoryStore{
		committed: map[string]map[string]types.Entity{},
		writer:    make(chan struct{}, 1),
	}
}

// Begin blocks until no other transaction is open or ctx is done
func (s *memoryStore) Begin(ctx context.Context) (store.Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &memoryTx{
		s:       s,
		pending: map[string]types.Entity{},
		deleted: map[string]types.Entity{},
	}, nil
}

type memoryTx struct {
	s    *memoryStore
	done bool

	pending map[string]types.Entity
	deleted map[string]types.Entity
}

func (tx *memoryTx) Find(ctx context.Context, entityType string) ([]types.Entity, error) {
	if tx.done {
		return nil, errors.ErrTxDone
	}

	byID := map[string]types.Entity{}

	tx.s.mu.RLock()
	for id, e := range tx.s.committed[entityType] {
		byID[id] = e
	}
	tx.s.mu.RUnlock()

	for id, e := range tx.pending {
		if e.Type() == entityType {
			byID[id] = e
		}
	}

	for id := range tx.deleted {
		delete(byID, id)
	}

	result := make([]types.Entity, 0, len(byID))
	for _, e := range byID {
		c, err := entities.Clone(e)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RemoteID() == result[j].RemoteID() {
			return result[i].ID() < result[j].ID()
		}
		return result[i].RemoteID() < result[j].RemoteID()
	})

	return result, nil
}

func (tx *memoryTx) Retrieve(ctx context.Context, entityType, remoteID string) (types.Entity, error) {
	found, err := tx.Find(ctx, entityType)
	if err != nil {
		return nil, err
	}

	for _, e := range found {
		if e.RemoteID() == remoteID {
			return e, nil
		}
	}

	return nil, errors.NewNotFoundError(fmt.Sprintf("no %s with remote id %s found", entityType, remoteID))
}

func (tx *memoryTx) Save(ctx context.Context, e types.Entity) error {
	if tx.done {
		return errors.ErrTxDone
	}

	c, err := entities.Clone(e)
	if err != nil {
		return err
	}

	delete(tx.deleted, e.ID())
	tx.pending[e.ID()] = c

	return nil
}

func (tx *memoryTx) Delete(ctx context.Context, e types.Entity) error {
	if tx.done {
		return errors.ErrTxDone
	}

	delete(tx.pending, e.ID())
	tx.deleted[e.ID()] = e

	return nil
}

func (tx *memoryTx) Commit(ctx context.Context) error {
	if tx.done {
		return errors.ErrTxDone
	}

	tx.s.mu.Lock()
	for id, e := range tx.deleted {
		delete(tx.s.committed[e.Type()], id)
	}

	for id, e := range tx.pending {
		byType, ok := tx.s.committed[e.Type()]
		if !ok {
			byType = map[string]types.Entity{}
			tx.s.committed[e.Type()] = byType
		}
		byType[id] = e
	}
	tx.s.mu.Unlock()

	tx.release()

	return nil
}

// Rollback discards all staged changes. Rolling back a finished transaction is a no-op.
func (tx *memoryTx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}

	tx.release()

	return nil
}

func (tx *memoryTx) release() {
	tx.done = true
	tx.pending = nil
	tx.deleted = nil
	<-tx.s.writer
}
