package main

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/verdantlabs/delegraph/scheduler"
	"github.com/verdantlabs/delegraph/types"
)

// commandKey is the brief metadata key holding the shell command to run.
const commandKey = "command"

// shellExecutor runs each brief's "command" metadata entry through the
// shell. Briefs without a command are treated as no-op markers and
// complete immediately.
func shellExecutor(logger *zap.Logger) scheduler.Executor {
	return func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error) {
		command := strings.TrimSpace(job.Brief.Metadata[commandKey])
		if command == "" {
			return fmt.Sprintf("nothing to run for %q", job.Brief.Title), nil
		}

		logger.Debug("running brief command",
			zap.String("node_id", job.NodeID),
			zap.String("command", command),
		)

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		output, err := cmd.CombinedOutput()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(string(output)))
		}

		return strings.TrimSpace(string(output)), nil
	}
}
