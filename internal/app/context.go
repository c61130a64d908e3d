package app

import (
	"database/sql"
	"fmt"

	"teampulse/internal/config"
	"teampulse/internal/db"
	"teampulse/internal/engine"
	"teampulse/internal/migrate"
)

// Open prepares a workspace for use: ensures the directory, opens the
// database, applies migrations, loads the optional config file and builds
// an engine. The caller owns the returned connection.
func Open(workspace string) (*sql.DB, engine.Engine, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, engine.Engine{}, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, engine.Engine{}, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, engine.Engine{}, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, engine.Engine{}, err
	}
	return conn, engine.New(conn, cfg), nil
}
