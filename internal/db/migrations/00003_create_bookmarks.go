package migrations

// The seq column gives a monotonically increasing insertion order, used to
// break created_at ties. Auto-increment syntax differs per driver.

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateBookmarks, downCreateBookmarks)
}

func upCreateBookmarks(ctx context.Context, tx *sql.Tx) error {
	var seq string
	switch dialect {
	case "postgres":
		seq = "seq BIGSERIAL PRIMARY KEY"
	case "mysql":
		seq = "seq BIGINT AUTO_INCREMENT PRIMARY KEY"
	default: // sqlite3
		seq = "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS bookmarks (
    %s,
    id         VARCHAR(36)   NOT NULL UNIQUE,
    owner_id   VARCHAR(36)   NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    title      VARCHAR(512)  NOT NULL,
    url        VARCHAR(2048) NOT NULL,
    created_at TIMESTAMP     NOT NULL
)`, seq)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create bookmarks table: %w", err)
	}
	_, err := tx.ExecContext(ctx, `CREATE INDEX idx_bookmarks_owner_created ON bookmarks (owner_id, created_at)`)
	return err
}

func downCreateBookmarks(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS bookmarks`)
	return err
}
