package storage

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DeletedCounts reports how many rows Wipe removed per collection.
type DeletedCounts struct {
	Users     int64
	Schemas   int64
	Documents int64
	Tags      int64
	Extracted int64
}

// Wipe deletes every row of every collection concurrently.
//
// The first failure cancels the remaining deletions; collections already
// emptied stay empty.
func Wipe(ctx context.Context, s Store) (DeletedCounts, error) {
	var c DeletedCounts
	g, ctx := errgroup.WithContext(ctx)
	run := func(name string, dst *int64, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(ctx)
			if err != nil {
				return fmt.Errorf("wiping %s: %w", name, err)
			}
			*dst = n
			return nil
		})
	}
	run("users", &c.Users, s.Users().DeleteAll)
	run("schemas", &c.Schemas, s.Schemas().DeleteAll)
	run("documents", &c.Documents, s.Documents().DeleteAll)
	run("tags", &c.Tags, s.Tags().DeleteAll)
	run("extracted", &c.Extracted, s.Extracted().DeleteAll)
	if err := g.Wait(); err != nil {
		return DeletedCounts{}, err
	}
	slog.InfoContext(ctx, "Database wiped", "driver", s.Driver(),
		"users", c.Users, "schemas", c.Schemas, "documents", c.Documents, "tags", c.Tags, "extracted", c.Extracted)
	return c, nil
}
