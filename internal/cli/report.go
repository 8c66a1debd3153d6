package cli

import (
	"context"
	"fmt"
	"log"

	recordstore "github.com/PeriniM/langsmith-bedrock-agents/observe/store"
	storesqlite "github.com/PeriniM/langsmith-bedrock-agents/observe/store/sqlite"
)

func listSession(ctx context.Context, args []string) {
	opts, _ := parseArgs(args)
	if opts.sessionID == "" {
		log.Fatal("--session=ID is required")
	}
	st := openStore(opts)
	defer st.Close()

	records, err := st.ListBySession(ctx, opts.sessionID, recordstore.ListQuery{})
	if err != nil {
		log.Fatalf("failed to list session records: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("no records for session", opts.sessionID)
		return
	}
	for _, r := range records {
		line := fmt.Sprintf("%s  %-10s %-9s %s", r.Timestamp.Format("2006-01-02 15:04:05.000"), r.Kind, r.Status, r.Name)
		if r.DurationMs > 0 {
			line += fmt.Sprintf("  (%dms)", r.DurationMs)
		}
		if r.Error != "" {
			line += "  error=" + r.Error
		}
		fmt.Println(line)
	}
}

func showMetrics(ctx context.Context, args []string) {
	opts, _ := parseArgs(args)
	st := openStore(opts)
	defer st.Close()

	summary, err := st.AggregateMetrics(ctx, recordstore.MetricsQuery{})
	if err != nil {
		log.Fatalf("failed to aggregate metrics: %v", err)
	}
	fmt.Printf("invocations: %d started, %d completed, %d failed\n",
		summary.InvocationsStarted, summary.InvocationsCompleted, summary.InvocationsFailed)
	fmt.Printf("steps traced: %d\n", summary.StepsTraced)
	fmt.Printf("tool calls: %d (%d failed)\n", summary.ToolCalls, summary.ToolFailures)
}

func openStore(opts cliOptions) *storesqlite.Store {
	cfg := loadConfig(opts)
	if cfg.TraceDB == "" {
		log.Fatal("a trace db is required (--db=PATH or TRACE_DB_PATH)")
	}
	st, err := storesqlite.New(cfg.TraceDB)
	if err != nil {
		log.Fatalf("failed to open trace db: %v", err)
	}
	return st
}
