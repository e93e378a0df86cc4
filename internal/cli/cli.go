// Package cli holds the ledgerctl subcommands. Each command opens its dependencies through
// Env so tests can substitute an in-memory store.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"ledgersync-backend/internal/config"
	"ledgersync-backend/internal/infrastructure/database"
	"ledgersync-backend/internal/infrastructure/synclock"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps is what a command may need. Rdb is nil when REDIS_URL is unset.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Rdb    *redis.Client

	closers []func()
}

// Close releases the connections OpenFromConfig opened.
func (d *Deps) Close() {
	for _, fn := range d.closers {
		fn()
	}
}

// Env is shared by every command.
type Env struct {
	Out  io.Writer
	Err  io.Writer
	Open func() (*Deps, error)
}

// OpenFromConfig opens the store and Redis named by cfg.
func OpenFromConfig(cfg *config.Config) func() (*Deps, error) {
	return func() (*Deps, error) {
		db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		deps := &Deps{Config: cfg, DB: db}
		if sqlDB, err := db.DB(); err == nil {
			deps.closers = append(deps.closers, func() { _ = sqlDB.Close() })
		}
		if cfg.RedisURL != "" {
			if deps.Rdb, err = synclock.Open(cfg.RedisURL); err != nil {
				deps.Close()
				return nil, err
			}
			deps.closers = append(deps.closers, func() { _ = deps.Rdb.Close() })
		}
		return deps, nil
	}
}

// Commands lists every ledgerctl subcommand.
func Commands(env *Env) []subcommands.Command {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Err == nil {
		env.Err = os.Stderr
	}
	return []subcommands.Command{
		&migrateCmd{env: env},
		&excludeStaleCmd{env: env},
		&reconcileCmd{env: env},
		&suggestionCmd{env: env},
		&inferLabelCmd{env: env},
		&syncCmd{env: env},
	}
}

func (e *Env) fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.Err, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

func (e *Env) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.Err, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

func (e *Env) printJSON(v any) subcommands.ExitStatus {
	enc := json.NewEncoder(e.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return e.fail("%v", err)
	}
	return subcommands.ExitSuccess
}

func optionalAccount(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q", s)
	}
	return &id, nil
}
