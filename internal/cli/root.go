// Package cli implements the command line entry points of the tracer
// binary.
package cli

import (
	"context"
	"fmt"
	"strings"
)

func Run(ctx context.Context, args []string) {
	if len(args) < 1 {
		printUsage()
		return
	}

	switch strings.TrimSpace(args[0]) {
	case "run":
		runInvoke(ctx, args[1:])
	case "sessions":
		listSession(ctx, args[1:])
	case "metrics":
		showMetrics(ctx, args[1:])
	case "help", "-h", "--help":
		printUsage()
	default:
		runInvoke(ctx, args)
	}
}

func printUsage() {
	fmt.Println(`Usage: langsmith-bedrock-agents <command> [flags] [input]

Commands:
  run       invoke the Bedrock agent with the given input and export the trace
  sessions  list recorded lifecycle events for a session (--session=ID, requires a trace db)
  metrics   print aggregate invocation metrics from the trace db
  help      show this message

Flags:
  --config=PATH         JSON config file (agent ids, region, export settings)
  --agent-id=ID         Bedrock agent id (env AGENT_ID)
  --agent-alias-id=ID   Bedrock agent alias id (env AGENT_ALIAS_ID)
  --region=REGION       AWS region (env AWS_REGION)
  --project=NAME        LangSmith project (env LANGSMITH_PROJECT)
  --session=ID          session id (default: fresh UUID)
  --db=PATH             sqlite trace db path (env TRACE_DB_PATH)`)
}
