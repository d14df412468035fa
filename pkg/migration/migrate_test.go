package migration

import (
	"database/sql"
	"slices"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRunContext はマイグレーションの適用順序と冪等性を検証する。
func TestRunContext(t *testing.T) {
	t.Parallel()

	t.Run("バージョン順に適用し2回目は何もしない", func(t *testing.T) {
		t.Parallel()
		db := openDB(t)
		fsys := fstest.MapFS{
			"m/000002_add_col.up.sql":  {Data: []byte("ALTER TABLE items ADD COLUMN label TEXT")},
			"m/000001_create.up.sql":   {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY)")},
			"m/000001_create.down.sql": {Data: []byte("DROP TABLE items")},
			"m/README.md":              {Data: []byte("ignored")},
			"m/notaversion_x.up.sql":   {Data: []byte("SELECT 1")},
		}

		applied, err := RunContext(t.Context(), db, fsys, "m")
		if err != nil {
			t.Fatalf("RunContext()でエラーが発生: %v", err)
		}
		if !slices.Equal(applied, []int{1, 2}) {
			t.Errorf("applied = %v, want [1 2]", applied)
		}
		if _, err := db.Exec("INSERT INTO items (id, label) VALUES ('a', 'b')"); err != nil {
			t.Errorf("スキーマが適用されていない: %v", err)
		}

		applied, err = RunContext(t.Context(), db, fsys, "m")
		if err != nil {
			t.Fatalf("2回目のRunContext()でエラーが発生: %v", err)
		}
		if len(applied) != 0 {
			t.Errorf("2回目のapplied = %v, want []", applied)
		}
	})

	t.Run("重複したバージョンはエラーになる", func(t *testing.T) {
		t.Parallel()
		db := openDB(t)
		fsys := fstest.MapFS{
			"m/000001_a.up.sql": {Data: []byte("CREATE TABLE a (id INTEGER)")},
			"m/000001_b.up.sql": {Data: []byte("CREATE TABLE b (id INTEGER)")},
		}
		if _, err := RunContext(t.Context(), db, fsys, "m"); err == nil {
			t.Fatal("エラーを返すべきだが、nilが返った")
		}
	})

	t.Run("SQLが失敗した場合はバージョンを記録しない", func(t *testing.T) {
		t.Parallel()
		db := openDB(t)
		fsys := fstest.MapFS{
			"m/000001_ok.up.sql":  {Data: []byte("CREATE TABLE ok (id INTEGER)")},
			"m/000002_bad.up.sql": {Data: []byte("CREATE TABLE")},
		}

		applied, err := RunContext(t.Context(), db, fsys, "m")
		if err == nil {
			t.Fatal("エラーを返すべきだが、nilが返った")
		}
		if !slices.Equal(applied, []int{1}) {
			t.Errorf("applied = %v, want [1]", applied)
		}

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = 2").Scan(&n); err != nil {
			t.Fatalf("クエリに失敗: %v", err)
		}
		if n != 0 {
			t.Errorf("失敗したバージョンが記録された")
		}
	})
}
