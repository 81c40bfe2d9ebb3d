package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/example/pressbridge/internal/config"
	"github.com/example/pressbridge/internal/store"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version = flag.Uint("version", 0, "Target version (for force command)")
	)
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	dialect, dsn, err := target(cfg)
	if err != nil {
		log.Fatalf("Database config error: %v", err)
	}

	switch *command {
	case "up":
		if err := store.Migrate(dialect, dsn, *steps); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		fmt.Println("✓ Migrations applied successfully")
	case "down":
		if *steps > 0 {
			err = store.Migrate(dialect, dsn, -*steps)
		} else {
			err = store.MigrateDown(dialect, dsn)
		}
		if err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		fmt.Println("✓ Migrations rolled back successfully")
	case "version":
		v, dirty, err := store.MigrationVersion(dialect, dsn)
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		if dirty {
			fmt.Printf("⚠ Database is in a dirty state (version %d)\n", v)
			os.Exit(1)
		}
		fmt.Printf("Current migration version: %d\n", v)
	case "force":
		if *version == 0 {
			log.Fatal("Version required for force command (use -version flag)")
		}
		if err := store.ForceVersion(dialect, dsn, int(*version)); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		fmt.Printf("✓ Forced database to version %d\n", *version)
	default:
		log.Fatalf("Unknown command: %s (supported: up, down, version, force)", *command)
	}
}

func target(cfg *config.Config) (store.Dialect, string, error) {
	switch cfg.DBAdapter {
	case "sqlite":
		return store.SQLite, cfg.SQLiteFile, nil
	case "postgres":
		dsn, err := cfg.BuildPostgresDSN()
		return store.Postgres, dsn, err
	}
	return "", "", fmt.Errorf("unsupported DB_ADAPTER: %s", cfg.DBAdapter)
}
