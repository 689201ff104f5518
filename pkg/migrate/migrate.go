package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Each service owns its own schema, so migrations live in per-service
// directories and never cross database boundaries.
const (
	AuthDir    = "pkg/migrate/migrations/authsvc"
	UserDir    = "pkg/migrate/migrations/usersvc"
	ProductDir = "pkg/migrate/migrations/productsvc"
)

// DirForService maps a service name to its migrations directory.
func DirForService(service string) (string, error) {
	switch service {
	case "auth-service":
		return AuthDir, nil
	case "user-service":
		return UserDir, nil
	case "product-service":
		return ProductDir, nil
	}
	return "", fmt.Errorf("no migrations for service %q", service)
}

// Run executes a standard goose command that requires a DB connection.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
