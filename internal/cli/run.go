package cli

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PeriniM/langsmith-bedrock-agents/bedrock"
	"github.com/PeriniM/langsmith-bedrock-agents/internal/config"
	"github.com/PeriniM/langsmith-bedrock-agents/internal/telemetry"
	"github.com/PeriniM/langsmith-bedrock-agents/observe"
	recordstore "github.com/PeriniM/langsmith-bedrock-agents/observe/store"
	storesqlite "github.com/PeriniM/langsmith-bedrock-agents/observe/store/sqlite"
	"github.com/PeriniM/langsmith-bedrock-agents/runtimeconfig"
	"github.com/PeriniM/langsmith-bedrock-agents/types"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/PeriniM/langsmith-bedrock-agents"

func runInvoke(ctx context.Context, args []string) {
	opts, positional := parseArgs(args)
	input := strings.TrimSpace(strings.Join(positional, " "))
	if input == "" {
		log.Fatal("input cannot be empty")
	}

	cfg := loadConfig(opts)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:       cfg.LangSmithEndpoint,
		APIKey:         cfg.LangSmithAPIKey,
		Project:        cfg.LangSmithProject,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
	})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	sink := observe.Sink(observe.NoopSink{})
	if cfg.TraceDB != "" {
		st, err := storesqlite.New(cfg.TraceDB)
		if err != nil {
			log.Fatalf("failed to open trace db: %v", err)
		}
		defer st.Close()
		async := observe.NewAsyncSink(recordstore.Sink(st), 256)
		defer async.Close()
		sink = async
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		log.Fatalf("failed to load AWS configuration: %v", err)
	}
	client := bedrock.New(awsCfg,
		bedrock.WithStreamFinalResponse(cfg.StreamFinalResponse),
		bedrock.WithGuardrailInterval(cfg.GuardrailInterval),
	)

	sessionID := opts.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	req := types.InvocationRequest{
		SessionID:    sessionID,
		InputText:    input,
		AgentID:      cfg.AgentID,
		AgentAliasID: cfg.AgentAliasID,
	}

	stream, err := client.Invoke(ctx, req)
	if err != nil {
		log.Fatalf("invocation failed: %v", err)
	}
	defer stream.Close()

	builder := observe.NewBuilder(otel.GetTracerProvider(), observe.WithSink(sink))
	res, buildErr := builder.Build(ctx, req, stream)
	recordMetrics(ctx, cfg.AgentID, res, buildErr)

	if buildErr != nil {
		log.Fatalf("trace incomplete: %v", buildErr)
	}
	fmt.Println(res.Output)
}

func loadConfig(opts cliOptions) config.Config {
	// Mirror of the deployment layout: .env for local runs, mounted
	// secrets in containers, optional file overrides.
	_ = godotenv.Load()
	cfg := config.FromEnv()
	if opts.configPath != "" {
		fileCfg, err := runtimeconfig.Load(opts.configPath)
		if err != nil {
			log.Fatalf("failed to load config file: %v", err)
		}
		cfg.ApplyFile(fileCfg)
	}
	if opts.agentID != "" {
		cfg.AgentID = opts.agentID
	}
	if opts.agentAliasID != "" {
		cfg.AgentAliasID = opts.agentAliasID
	}
	if opts.region != "" {
		cfg.Region = opts.region
	}
	if opts.project != "" {
		cfg.LangSmithProject = opts.project
	}
	if opts.db != "" {
		cfg.TraceDB = opts.db
	}
	return cfg
}

func recordMetrics(ctx context.Context, agentID string, res observe.Result, buildErr error) {
	meter := telemetry.Meter(meterName)
	invocations, err := meter.Int64Counter("bedrock.agent.invocations")
	if err != nil {
		return
	}
	tokens, err := meter.Int64Counter("bedrock.agent.tokens")
	if err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("agent.id", agentID),
		attribute.Bool("error", buildErr != nil || res.Failure != ""),
	)
	invocations.Add(ctx, 1, attrs)
	if total := res.Usage.Total(); total > 0 {
		tokens.Add(ctx, int64(total), attrs)
	}
}
