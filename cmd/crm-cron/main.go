package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
	"github.com/vladislavdragonenkov/crm/internal/jobs"
)

const (
	jobHeartbeat      = "heartbeat"
	jobUpdateLowStock = "update-low-stock"
	jobOrderReminders = "order-reminders"

	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

var defaultLogPaths = map[string]string{
	jobHeartbeat:      jobs.HeartbeatLogPath,
	jobUpdateLowStock: jobs.LowStockLogPath,
	jobOrderReminders: jobs.RemindersLogPath,
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

// run выполняет одну задачу и возвращает код выхода. Сбой самой задачи
// только журналируется; ненулевой код означает ошибку запуска.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("crm-cron", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		endpoint string
		logPath  string
		selfTest bool
		timeout  time.Duration
	)
	fs.StringVar(&endpoint, "endpoint", "", "GraphQL endpoint (fallback: "+graphql.EndpointEnv+")")
	fs.StringVar(&logPath, "log", "", "event log path (default depends on job)")
	fs.BoolVar(&selfTest, "self-test", true, "heartbeat: query { hello } after logging")
	fs.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "usage: crm-cron [flags] %s|%s|%s\n", jobHeartbeat, jobUpdateLowStock, jobOrderReminders)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	job := strings.ToLower(strings.TrimSpace(fs.Arg(0)))
	defaultPath, ok := defaultLogPaths[job]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown job: %s\n", fs.Arg(0))
		fs.Usage()
		return exitUsage
	}
	if logPath == "" {
		logPath = defaultPath
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = getenv(graphql.EndpointEnv)
	}

	events, err := jobs.OpenEventLog(logPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return exitFail
	}
	defer events.Close()

	runner := jobs.NewRunner(graphql.New(endpoint, graphql.WithTimeout(timeout)), jobs.WithStdout(stdout))
	switch job {
	case jobHeartbeat:
		runner.Heartbeat(ctx, events.Logger, selfTest)
	case jobUpdateLowStock:
		runner.UpdateLowStock(ctx, events.Logger)
	case jobOrderReminders:
		runner.OrderReminders(ctx, events.Logger)
	}
	return exitOK
}
