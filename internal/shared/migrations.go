package shared

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// migrationFile matches names like 0001_create_responses_up.sql.
var migrationFile = regexp.MustCompile(`^(\d{4})_([a-z0-9_]+)_(up|down)\.sql$`)

// Migration is one versioned schema change of the cache database.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// loadMigrations reads the embedded scripts. Versions must run from 1 without gaps and
// every version needs both an up and a down script.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		m := migrationFile.FindStringSubmatch(entry.Name())
		if m == nil {
			return nil, fmt.Errorf("%w: unexpected migration file %s", ErrInvalidConfig, entry.Name())
		}
		version, _ := strconv.Atoi(m[1])

		content, err := migrationFiles.ReadFile(path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{Version: version, Name: m[2]}
			byVersion[version] = mig
		} else if mig.Name != m[2] {
			return nil, fmt.Errorf("%w: version %d is both %s and %s", ErrInvalidConfig, version, mig.Name, m[2])
		}

		if m[3] == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" || mig.Down == "" {
			return nil, fmt.Errorf("incomplete migration for version %d", mig.Version)
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	for i, mig := range migrations {
		if mig.Version != i+1 {
			return nil, fmt.Errorf("%w: expected migration version %d, found %d", ErrInvalidConfig, i+1, mig.Version)
		}
	}
	return migrations, nil
}

// RunMigrations applies every migration not yet recorded in schema_migrations, in
// version order.
func RunMigrations(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}
		err := inTx(db, mig.Up, "INSERT INTO schema_migrations (version) VALUES (?)", mig.Version)
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

// SchemaVersion returns the latest applied migration version, or 0 when none has run.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// RollbackMigration reverts the latest applied migration and returns it.
func RollbackMigration(db *sql.DB) (*Migration, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return nil, err
	}
	if current == 0 {
		return nil, fmt.Errorf("no migrations to rollback")
	}
	if current > len(migrations) {
		return nil, fmt.Errorf("migration version %d not found", current)
	}

	mig := migrations[current-1]
	if err := inTx(db, mig.Down, "DELETE FROM schema_migrations WHERE version = ?", mig.Version); err != nil {
		return nil, fmt.Errorf("failed to rollback migration %d (%s): %w", mig.Version, mig.Name, err)
	}
	return &mig, nil
}

// ResetDatabase rolls back every applied migration, newest first, then applies them
// again. Cached responses and resolution history are lost. It returns the number of
// migrations rolled back.
func ResetDatabase(db *sql.DB) (int, error) {
	current, err := SchemaVersion(db)
	if err != nil {
		return 0, err
	}

	for n := range current {
		if _, err := RollbackMigration(db); err != nil {
			return n, err
		}
	}
	return current, RunMigrations(db)
}

// inTx runs script one statement at a time and then record, all in one transaction.
func inTx(db *sql.DB, script, record string, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements(script) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}
	if _, err := tx.Exec(record, version); err != nil {
		return err
	}
	return tx.Commit()
}

// statements splits script on semicolons and drops "--" comments and blank statements.
func statements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if i := strings.Index(line, "--"); i >= 0 {
				line = line[:i]
			}
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	}
	return out
}
