// Command loadtest нагружает GraphQL API CRM мутациями и запросами и печатает
// сводку латентности по операциям.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
)

type loadMode string

const (
	modeCustomer     loadMode = "customer"
	modeBulkCustomer loadMode = "bulk-customer"
	modeOrder        loadMode = "order"
	modeOrderQuery   loadMode = "order-query"
)

var loadModes = []loadMode{modeCustomer, modeBulkCustomer, modeOrder, modeOrderQuery}

type config struct {
	endpoint    string
	mode        loadMode
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	// batch — число клиентов в одном bulkCreateCustomers.
	batch    int
	price    string
	pageSize int
	runTag   string
	output   string
}

func parseConfig() (config, error) {
	var (
		cfg  config
		mode string
	)
	flag.StringVar(&cfg.endpoint, "endpoint", "", "GraphQL endpoint (fallback: "+graphql.EndpointEnv+")")
	flag.StringVar(&mode, "mode", string(modeOrder), "load mode: customer | bulk-customer | order | order-query")
	flag.IntVar(&cfg.total, "total", 400, "scenarios to run; with -duration acts as an upper bound")
	flag.DurationVar(&cfg.duration, "duration", 0, "run for this long instead of a fixed count")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "parallel workers")
	flag.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	flag.IntVar(&cfg.batch, "batch", 10, "customers per bulkCreateCustomers call")
	flag.StringVar(&cfg.price, "price", "19.99", "price of the fixture product")
	flag.IntVar(&cfg.pageSize, "page-size", 20, "allOrders page size in order-query mode")
	flag.StringVar(&cfg.runTag, "run-tag", "", "prefix for generated emails and idempotency keys")
	flag.StringVar(&cfg.output, "output", "", "write the JSON report to this file")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		cfg.totalSet = cfg.totalSet || f.Name == "total"
	})
	if strings.TrimSpace(cfg.endpoint) == "" {
		cfg.endpoint = os.Getenv(graphql.EndpointEnv)
	}
	if strings.TrimSpace(cfg.runTag) == "" {
		cfg.runTag = fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid())
	}

	m, err := parseMode(mode)
	if err != nil {
		return cfg, err
	}
	cfg.mode = m
	return cfg, cfg.validate()
}

func parseMode(value string) (loadMode, error) {
	m := loadMode(strings.TrimSpace(value))
	for _, known := range loadModes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported mode %q", value)
}

func (cfg config) validate() error {
	switch {
	case cfg.duration < 0:
		return errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return errors.New("total must be > 0 without duration")
	case cfg.totalSet && cfg.total <= 0:
		return errors.New("total must be > 0 when set")
	case cfg.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return errors.New("timeout must be > 0")
	case cfg.batch <= 0:
		return errors.New("batch must be > 0")
	case cfg.pageSize <= 0:
		return errors.New("page-size must be > 0")
	case strings.TrimSpace(cfg.price) == "":
		return errors.New("price is required")
	}
	return nil
}

// target описывает границу прогона для сводки.
func (cfg config) target() string {
	switch {
	case cfg.duration <= 0:
		return fmt.Sprintf("count:%d", cfg.total)
	case cfg.totalSet:
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	default:
		return fmt.Sprintf("duration:%s", cfg.duration)
	}
}

func main() {
	_ = godotenv.Load()

	cfg, err := parseConfig()
	if err != nil {
		exit("invalid config: %v", err)
	}

	client := graphql.New(cfg.endpoint, graphql.WithTimeout(cfg.timeout))
	result, err := runLoad(context.Background(), cfg, client)
	if err != nil {
		exit("load test setup failed: %v", err)
	}

	printReport(os.Stdout, result, cfg)
	if cfg.output != "" {
		if err := writeReport(cfg.output, result); err != nil {
			exit("write report: %v", err)
		}
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}

func exit(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
