package main

import (
	"context"
	"os"
	"testing"

	"github.com/diwise/entity-mapper/pkg/store/postgres"
	"github.com/diwise/entity-mapper/pkg/types"
	"github.com/diwise/entity-mapper/pkg/types/entities"
	"github.com/matryer/is"
)

func TestOnlyRedundantCopiesAreRemoved(t *testing.T) {
	if os.Getenv("POSTGRES_HOST") == "" {
		t.Skip("POSTGRES_HOST is not set")
	}

	is := is.New(t)
	ctx := context.Background()

	p, err := postgres.Connect(ctx, postgres.LoadConfiguration(ctx))
	is.NoErr(err)
	defer p.Close()

	s, err := postgres.New(ctx, p)
	is.NoErr(err)

	const entityType = "CleanerTestEntity"

	older, _ := entities.New(entityType, "1", entities.Text("name", "same"))
	newer, _ := entities.New(entityType, "1", entities.Text("name", "same"))

	alice, _ := entities.New(entityType, "2", entities.Text("owner", "alice"))
	bob, _ := entities.New(entityType, "2", entities.Text("owner", "bob"))

	linked, _ := entities.New(entityType, "3", entities.Text("name", "linked"))
	unlinked, _ := entities.New(entityType, "3", entities.Text("name", "linked"))
	linker, _ := entities.New("CleanerTestLink", "1", entities.Ref("target", linked))

	all := []types.Entity{older, newer, alice, bob, linked, unlinked, linker}

	for _, e := range all {
		tx, err := s.Begin(ctx)
		is.NoErr(err)
		is.NoErr(tx.Save(ctx, e))
		is.NoErr(tx.Commit(ctx))
	}

	dups, err := findDuplicates(ctx, p, entityType)
	is.NoErr(err)
	is.Equal(dups, []string{older.ID()}) // only the unreferenced identical copy should go

	is.NoErr(deleteDuplicates(ctx, p, dups))

	tx, err := s.Begin(ctx)
	is.NoErr(err)

	remaining, err := tx.Find(ctx, entityType)
	is.NoErr(err)
	is.Equal(len(remaining), 5)

	for _, e := range append(remaining, linker) {
		is.NoErr(tx.Delete(ctx, e))
	}
	is.NoErr(tx.Commit(ctx))
}
