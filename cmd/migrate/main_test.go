package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/storage/postgres"
)

type fakeMigrator struct {
	upSteps   []int
	downSteps []int
	state     postgres.MigrationState
	err       error
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.upSteps = append(f.upSteps, steps)
	return f.err
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.downSteps = append(f.downSteps, steps)
	return f.err
}

func (f *fakeMigrator) MigrationStatus(context.Context) (postgres.MigrationState, error) {
	return f.state, nil
}

func TestRunDirections(t *testing.T) {
	m := &fakeMigrator{state: postgres.MigrationState{Version: 2, Applied: 2}}
	var out bytes.Buffer

	if err := run(context.Background(), m, "UP", 0, &out); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := run(context.Background(), m, "down", 0, &out); err != nil {
		t.Fatalf("down: %v", err)
	}
	if err := run(context.Background(), m, " status ", 0, &out); err != nil {
		t.Fatalf("status: %v", err)
	}

	if len(m.upSteps) != 1 || m.upSteps[0] != 0 {
		t.Fatalf("unexpected up steps %v", m.upSteps)
	}
	if len(m.downSteps) != 1 || m.downSteps[0] != 1 {
		t.Fatalf("down must default to one step, got %v", m.downSteps)
	}
	want := []string{
		"migrate up ok: version=2 applied=2 pending=0",
		"migrate down ok: version=2 applied=2 pending=0",
		"migration status: version=2 applied=2 pending=0",
	}
	if got := strings.Split(strings.TrimSpace(out.String()), "\n"); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunStatusReportsModifiedMigrations(t *testing.T) {
	m := &fakeMigrator{state: postgres.MigrationState{Version: 2, Applied: 2, Modified: []string{"0001_init"}}}
	var out bytes.Buffer

	if err := run(context.Background(), m, "status", 0, &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	want := "migration status: version=2 applied=2 pending=0\nmodified after apply: 0001_init\n"
	if out.String() != want {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	m := &fakeMigrator{err: errors.New("boom")}

	if err := run(context.Background(), m, "up", 0, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "migrate up failed") {
		t.Fatalf("expected up failure, got %v", err)
	}
	if err := run(context.Background(), m, "sideways", 0, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "unsupported direction") {
		t.Fatalf("expected unsupported direction, got %v", err)
	}
}

func withMigrateCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"migrate"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestMainStatusAndMigratePaths(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("CRM_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	store, err := postgres.Open(ctx, dsn)
	cancel()
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	_ = store.Close()

	withMigrateCLIArgs(t, []string{"-direction=up", "-dsn=" + dsn}, func() {
		main()
	})
	withMigrateCLIArgs(t, []string{"-direction=status", "-dsn=" + dsn}, func() {
		main()
	})
}

func TestMainMissingDSNExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_EXIT") == "1" {
		withMigrateCLIArgs(t, []string{"-direction=status", "-dsn="}, func() {
			_ = os.Unsetenv(dsnEnv)
			main()
		})
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMainMissingDSNExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}
