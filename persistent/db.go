package persistent

import (
	"context"
	"fmt"

	"github.com/socialpin/pin/pgdb"
	"github.com/uptrace/bun"
)

// CreateSchema creates the scrape tables when they are missing. The avatar
// table cascades on profile deletion: avatars are owned exclusively by
// their profile.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*Profile)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create profile table: %w", err)
	}

	_, err = db.NewCreateTable().
		Model((*Avatar)(nil)).
		IfNotExists().
		ForeignKey(`("profile_id") REFERENCES "profile" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create avatar table: %w", err)
	}
	return nil
}

func PgOpenTest(ctx context.Context) *bun.DB {
	return pgdb.OpenTest(ctx)
}
