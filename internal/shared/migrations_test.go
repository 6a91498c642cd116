package shared

import (
	"database/sql"
	"reflect"
	"testing"
)

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrations(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		var names []string
		for i, m := range migrations {
			if m.Version != i+1 {
				t.Errorf("expected version %d, got %d", i+1, m.Version)
			}
			if m.Up == "" || m.Down == "" {
				t.Errorf("migration %d is missing a script", m.Version)
			}
			names = append(names, m.Name)
		}

		want := []string{"create_responses", "create_resolutions"}
		if !reflect.DeepEqual(names, want) {
			t.Errorf("expected %v, got %v", want, names)
		}
	})

	t.Run("RunMigrations creates both tables", func(t *testing.T) {
		db := migratedDB(t)
		for _, table := range []string{"responses", "resolutions"} {
			if !tableExists(t, db, table) {
				t.Errorf("expected table %s", table)
			}
		}

		version, err := SchemaVersion(db)
		if err != nil {
			t.Fatal(err)
		}
		if version != 2 {
			t.Errorf("expected schema version 2, got %d", version)
		}
	})

	t.Run("RunMigrations is idempotent", func(t *testing.T) {
		db := migratedDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 2 {
			t.Errorf("expected 2 applied migrations, got %d", count)
		}
	})

	t.Run("RollbackMigration reverts the latest version only", func(t *testing.T) {
		db := migratedDB(t)

		mig, err := RollbackMigration(db)
		if err != nil {
			t.Fatalf("failed to rollback: %v", err)
		}
		if mig.Version != 2 || mig.Name != "create_resolutions" {
			t.Errorf("unexpected migration rolled back: %d %s", mig.Version, mig.Name)
		}
		if tableExists(t, db, "resolutions") {
			t.Error("expected resolutions dropped")
		}
		if !tableExists(t, db, "responses") {
			t.Error("expected responses kept")
		}

		if _, err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback: %v", err)
		}
		if _, err := RollbackMigration(db); err == nil {
			t.Error("expected an error with nothing left to roll back")
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to reapply migrations: %v", err)
		}
		if !tableExists(t, db, "resolutions") {
			t.Error("expected resolutions recreated")
		}
	})

	t.Run("ResetDatabase drops stored rows", func(t *testing.T) {
		db := migratedDB(t)
		_, err := db.Exec(`INSERT INTO responses (id, cache_key, method, url, body, expires_at)
			VALUES ('1', 'GET https://api', 'GET', 'https://api', x'7b7d', CURRENT_TIMESTAMP)`)
		if err != nil {
			t.Fatal(err)
		}

		n, err := ResetDatabase(db)
		if err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 migrations rolled back, got %d", n)
		}

		var rows int
		if err := db.QueryRow("SELECT COUNT(*) FROM responses").Scan(&rows); err != nil {
			t.Fatal(err)
		}
		if rows != 0 {
			t.Errorf("expected an empty responses table, got %d rows", rows)
		}
		if version, _ := SchemaVersion(db); version != 2 {
			t.Errorf("expected schema version 2 after reset, got %d", version)
		}
	})
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"empty", "", nil},
		{"comments only", "-- nothing here\n;\n", nil},
		{
			"two statements",
			"-- header\nCREATE TABLE a (id INTEGER); -- trailing\n\nDROP TABLE b;",
			[]string{"CREATE TABLE a (id INTEGER)", "DROP TABLE b"},
		},
		{
			"multi-line statement",
			"CREATE TABLE a (\n    id INTEGER -- key\n);",
			[]string{"CREATE TABLE a (\nid INTEGER\n)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statements(tt.script); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("statements() = %q, want %q", got, tt.want)
			}
		})
	}
}
