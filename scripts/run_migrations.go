package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lauracd1s/Proyecto-licore/internal/config"
	"github.com/lauracd1s/Proyecto-licore/internal/logger"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const migrationDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		fmt.Fprintln(os.Stderr, "direction must be 'up' or 'down'")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.Environment)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}

	files, err := migrationFiles(migrationDir, direction)
	if err != nil {
		log.Fatal().Err(err).Msg("read migration directory")
	}

	for _, filename := range files {
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			log.Fatal().Err(err).Str("file", filename).Msg("read migration file")
		}

		log.Info().Str("file", filename).Msg("running migration")
		if _, err := db.Exec(string(content)); err != nil {
			log.Fatal().Err(err).Str("file", filename).Msg("execute migration")
		}
	}

	log.Info().Int("count", len(files)).Str("direction", direction).Msg("migrations applied")
}

// migrationFiles lists the files of one direction in execution order:
// ascending for up, descending for down.
func migrationFiles(dir, direction string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), "."+direction+".sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}
