package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"savingscredit/internal/config"
	"savingscredit/internal/db"
	"savingscredit/internal/logger"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	down := flag.Bool("down", false, "roll back the most recent applied migration")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text PRIMARY KEY, applied_at timestamptz DEFAULT now())`); err != nil {
		log.WithError(err).Fatal("failed to ensure schema_migrations")
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		log.WithError(err).Fatal("failed to read migrations")
	}
	sort.Strings(files)

	if *down {
		if err := rollbackLatest(database, files, log); err != nil {
			log.WithError(err).Fatal("rollback failed")
		}
		return
	}
	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			log.WithError(err).Fatal("failed to read migration state")
		}
		if exists {
			continue
		}
		up, _, err := readSections(file)
		if err != nil {
			log.WithError(err).WithField("file", filename).Fatal("failed to read migration")
		}
		if err := apply(database, up, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			log.WithError(err).WithField("file", filename).Fatal("failed to apply migration")
		}
		log.WithField("file", filename).Info("applied migration")
	}
}

func rollbackLatest(database *sqlx.DB, files []string, log logrus.FieldLogger) error {
	var latest string
	err := database.Get(&latest, `SELECT filename FROM schema_migrations ORDER BY filename DESC LIMIT 1`)
	if err != nil {
		return fmt.Errorf("find latest migration: %w", err)
	}
	for _, file := range files {
		if filepath.Base(file) != latest {
			continue
		}
		_, down, err := readSections(file)
		if err != nil {
			return err
		}
		if err := apply(database, down, `DELETE FROM schema_migrations WHERE filename = $1`, latest); err != nil {
			return err
		}
		log.WithField("file", latest).Info("rolled back migration")
		return nil
	}
	return fmt.Errorf("migration %s is recorded but missing from disk", latest)
}

// apply runs statements and the bookkeeping query in one transaction.
func apply(database *sqlx.DB, statements []string, record, filename string) error {
	tx, err := database.Beginx()
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(record, filename); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func readSections(path string) ([]string, []string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	up, down := splitSections(string(content))
	return splitSQL(up), splitSQL(down), nil
}

// splitSections returns the Up and Down halves. A file without markers is all Up.
func splitSections(content string) (string, string) {
	up, down, _ := strings.Cut(content, downMarker)
	up = strings.Replace(up, upMarker, "", 1)
	return up, down
}

func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
