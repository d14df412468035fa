// Package migration はembed.FSに同梱したSQLファイルでSQLiteのスキーマを更新する。
// 適用済みのバージョンはschema_migrationsテーブルに記録する。
package migration

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"path"
	"slices"
	"strconv"
	"strings"
)

// upSuffix はマイグレーションファイルの拡張子。
const upSuffix = ".up.sql"

// step はマイグレーションファイル1件。
type step struct {
	version int
	name    string
	path    string
}

// Run はcontext.Backgroundで RunContext を呼び出す。
func Run(db *sql.DB, fsys fs.FS, dir string) error {
	_, err := RunContext(context.Background(), db, fsys, dir)
	return err
}

// RunContext は dir 配下の未適用マイグレーションをバージョン順に適用し、適用したバージョンを返す。
// ファイル名は 000001_description.up.sql の形式で、バージョンの重複はエラーにする。
func RunContext(ctx context.Context, db *sql.DB, fsys fs.FS, dir string) ([]int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return nil, fmt.Errorf("schema_migrationsの作成に失敗: %w", err)
	}

	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}

	steps, err := scan(fsys, dir)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, st := range steps {
		if done[st.version] {
			continue
		}
		if err := apply(ctx, db, fsys, st); err != nil {
			return applied, fmt.Errorf("%06d_%s の適用に失敗: %w", st.version, st.name, err)
		}
		log.Printf("[Migration] %06d_%s を適用", st.version, st.name)
		applied = append(applied, st.version)
	}
	return applied, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

// scan は dir 直下の up.sql を集めてバージョン順に並べる。
// 形式に合わないファイル名は無視する。
func scan(fsys fs.FS, dir string) ([]step, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%s の読み込みに失敗: %w", dir, err)
	}

	seen := make(map[int]string)
	var steps []step
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), upSuffix) {
			continue
		}
		prefix, rest, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("バージョン %06d が重複しています: %s, %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		steps = append(steps, step{
			version: version,
			name:    strings.TrimSuffix(rest, upSuffix),
			path:    path.Join(dir, e.Name()),
		})
	}

	slices.SortFunc(steps, func(a, b step) int { return cmp.Compare(a.version, b.version) })
	return steps, nil
}

// apply はSQLの実行とバージョンの記録を1トランザクションで行う。
func apply(ctx context.Context, db *sql.DB, fsys fs.FS, st step) error {
	body, err := fs.ReadFile(fsys, st.path)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", st.version); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}
	return tx.Commit()
}
