package postgres

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	migrationsDir = "sql/migrations"
	// crmMigrationLock — ключ pg_advisory_lock, общий для всех экземпляров crm-server и cmd/migrate.
	crmMigrationLock = int64(0x63726d)

	schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    checksum TEXT NOT NULL DEFAULT '',
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE schema_migrations ADD COLUMN IF NOT EXISTS checksum TEXT NOT NULL DEFAULT ''`
)

//go:embed sql/migrations/*.sql
var embeddedMigrations embed.FS

var migrationFileName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// ErrMigrationModified — применённая миграция была изменена после применения.
var ErrMigrationModified = errors.New("applied migration was modified")

// migration — пара up/down скриптов одной версии схемы CRM.
type migration struct {
	version int64
	name    string
	up      string
	down    string
}

func (m migration) label() string { return fmt.Sprintf("%04d_%s", m.version, m.name) }

// checksum фиксирует содержимое up-скрипта на момент применения.
func (m migration) checksum() string {
	sum := sha256.Sum256([]byte(m.up))
	return hex.EncodeToString(sum[:])
}

// MigrationState описывает состояние схемы относительно встроенных миграций.
type MigrationState struct {
	Version  int64
	Applied  int
	Pending  int
	Modified []string
}

// MigrateUp применяет ожидающие миграции; steps=0 — все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrationLock(ctx, func(conn *sql.Conn, set []migration) error {
		applied, err := appliedChecksums(ctx, conn)
		if err != nil {
			return err
		}
		if modified := modifiedMigrations(set, applied); len(modified) > 0 {
			return fmt.Errorf("%w: %s", ErrMigrationModified, strings.Join(modified, ", "))
		}

		done := 0
		for _, m := range set {
			if _, ok := applied[m.version]; ok {
				continue
			}
			if steps > 0 && done == steps {
				break
			}
			if err := runMigration(ctx, conn, m, m.up,
				`INSERT INTO schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`,
				m.version, m.name, m.checksum()); err != nil {
				return err
			}
			done++
		}
		return nil
	})
}

// MigrateDown откатывает последние steps миграций; steps<=0 — одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrationLock(ctx, func(conn *sql.Conn, set []migration) error {
		applied, err := appliedChecksums(ctx, conn)
		if err != nil {
			return err
		}

		versions := make([]int64, 0, len(applied))
		for v := range applied {
			versions = append(versions, v)
		}
		slices.Sort(versions)
		slices.Reverse(versions)
		if len(versions) > steps {
			versions = versions[:steps]
		}

		for _, v := range versions {
			idx := slices.IndexFunc(set, func(m migration) bool { return m.version == v })
			if idx < 0 {
				return fmt.Errorf("cannot roll back unknown migration version %d", v)
			}
			m := set[idx]
			if err := runMigration(ctx, conn, m, m.down,
				`DELETE FROM schema_migrations WHERE version = $1`, m.version); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus возвращает версию схемы, число применённых и ожидающих миграций
// и список применённых миграций, чьё содержимое с тех пор изменилось.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, fmt.Errorf("postgres store is not initialized")
	}
	set, err := loadMigrations(embeddedMigrations)
	if err != nil {
		return MigrationState{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(queryCtx, schemaMigrationsDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedChecksums(queryCtx, s.db)
	if err != nil {
		return MigrationState{}, err
	}

	state := MigrationState{Applied: len(applied), Modified: modifiedMigrations(set, applied)}
	for v := range applied {
		state.Version = max(state.Version, v)
	}
	for _, m := range set {
		if _, ok := applied[m.version]; !ok {
			state.Pending++
		}
	}
	return state, nil
}

// withMigrationLock выполняет fn на выделенном соединении под advisory lock.
func (s *Store) withMigrationLock(ctx context.Context, fn func(conn *sql.Conn, set []migration) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}
	set, err := loadMigrations(embeddedMigrations)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", crmMigrationLock); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", crmMigrationLock)
	}()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn, set)
}

// runMigration выполняет скрипт и запись в schema_migrations в одной транзакции.
func runMigration(ctx context.Context, conn *sql.Conn, m migration, script, record string, args ...any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.label(), err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("run migration %s: %w", m.label(), err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("record migration %s: %w", m.label(), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.label(), err)
	}
	return nil
}

func appliedChecksums(ctx context.Context, q dbtx) (map[int64]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]string)
	for rows.Next() {
		var (
			version  int64
			checksum string
		)
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// modifiedMigrations сравнивает сохранённые контрольные суммы с встроенными скриптами.
// Пустая сумма не проверяется.
func modifiedMigrations(set []migration, applied map[int64]string) []string {
	var modified []string
	for _, m := range set {
		sum, ok := applied[m.version]
		if ok && sum != "" && sum != m.checksum() {
			modified = append(modified, m.label())
		}
	}
	return modified
}

// loadMigrations читает пары up/down из каталога миграций и сортирует их по версии.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		parts := migrationFileName.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", entry.Name())
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version %s: %w", entry.Name(), err)
		}

		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		script := strings.TrimSpace(string(raw))
		if script == "" {
			return nil, fmt.Errorf("migration file is empty: %s", entry.Name())
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{version: version, name: parts[2]}
			byVersion[version] = m
		}
		if m.name != parts[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %s and %s", version, m.name, parts[2])
		}

		target := &m.up
		if parts[3] == "down" {
			target = &m.down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = script
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	set := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" || m.down == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.label())
		}
		set = append(set, *m)
	}
	slices.SortFunc(set, func(a, b migration) int { return cmp.Compare(a.version, b.version) })
	return set, nil
}
