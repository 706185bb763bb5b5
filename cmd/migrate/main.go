// File: cmd/migrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gopkg.in/yaml.v3"
)

// migrate up|down|goto <version>|version
//
// The database URL comes from the same config file the app reads, or from
// DATABASE_URL when set.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	src := flag.String("migrations", "file://migrations", "migration source URL")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}
	command := flag.Arg(0)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		url, err := databaseURLFromConfig(*cfgPath)
		if err != nil {
			log.Fatalf("database url: %v", err)
		}
		dbURL = url
	}

	m, err := migrate.New(*src, dbURL)
	if err != nil {
		log.Fatalf("init migration: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("close migration: %v, %v", sourceErr, dbErr)
		}
	}()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate up: %v", err)
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Println("no change: database is up to date")
		} else {
			log.Println("migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Println("rolled back one migration")

	case "goto":
		if flag.NArg() < 2 {
			log.Fatalf("goto requires a version number")
		}
		version, err := strconv.ParseUint(flag.Arg(1), 10, 64)
		if err != nil {
			log.Fatalf("invalid version %q: %v", flag.Arg(1), err)
		}
		if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate goto %d: %v", version, err)
		}
		log.Printf("database at version %d", version)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("version: %v", err)
		}
		log.Printf("version=%d dirty=%v", version, dirty)

	default:
		printUsage()
		os.Exit(1)
	}
}

func databaseURLFromConfig(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	var cfg struct {
		Database struct {
			URL string `yaml:"url"`
		} `yaml:"database"`
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return "", fmt.Errorf("parse config: %w", err)
	}
	if cfg.Database.URL == "" {
		return "", errors.New("database.url is empty")
	}
	return cfg.Database.URL, nil
}

func printUsage() {
	fmt.Println("usage: migrate [-config config.yaml] [-migrations file://migrations] <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  up              apply all pending migrations")
	fmt.Println("  down            roll back the last migration")
	fmt.Println("  goto <version>  migrate to a specific version")
	fmt.Println("  version         print the current version")
}
