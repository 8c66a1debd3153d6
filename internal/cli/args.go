package cli

import "strings"

type cliOptions struct {
	configPath   string
	agentID      string
	agentAliasID string
	region       string
	project      string
	sessionID    string
	db           string
}

func parseArgs(args []string) (cliOptions, []string) {
	opts := cliOptions{}
	positional := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimSpace(strings.TrimPrefix(arg, "--config="))
		case strings.HasPrefix(arg, "--agent-id="):
			opts.agentID = strings.TrimSpace(strings.TrimPrefix(arg, "--agent-id="))
		case strings.HasPrefix(arg, "--agent-alias-id="):
			opts.agentAliasID = strings.TrimSpace(strings.TrimPrefix(arg, "--agent-alias-id="))
		case strings.HasPrefix(arg, "--region="):
			opts.region = strings.TrimSpace(strings.TrimPrefix(arg, "--region="))
		case strings.HasPrefix(arg, "--project="):
			opts.project = strings.TrimSpace(strings.TrimPrefix(arg, "--project="))
		case strings.HasPrefix(arg, "--session="):
			opts.sessionID = strings.TrimSpace(strings.TrimPrefix(arg, "--session="))
		case strings.HasPrefix(arg, "--db="):
			opts.db = strings.TrimSpace(strings.TrimPrefix(arg, "--db="))
		default:
			positional = append(positional, arg)
		}
	}
	return opts, positional
}
