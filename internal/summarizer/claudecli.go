package summarizer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rcliao/observational-memory/internal/config"
)

// HookGuardEnv prevents recursive invocation: om runs as a session hook,
// and `claude -p` could otherwise re-trigger the same hook.
const HookGuardEnv = "OM_HOOK_ACTIVE"

const claudeDefaultModel = "haiku"

// claudeCLI shells out to `claude -p` in pipe mode. No API key needed;
// the installed CLI carries its own auth.
type claudeCLI struct {
	timeout time.Duration
}

func newClaudeCLI(cfg config.SummarizerConfig) *claudeCLI {
	timeout := 120 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &claudeCLI{timeout: timeout}
}

func (c *claudeCLI) complete(ctx context.Context, model, system, user string) (string, error) {
	if os.Getenv(HookGuardEnv) != "" {
		return "", fmt.Errorf("recursive hook invocation blocked")
	}
	if model == "" {
		model = claudeDefaultModel
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "claude", "-p", "--model", model)
	cmd.Stdin = strings.NewReader("<instructions>\n" + system + "\n</instructions>\n\n" + user)

	env := []string{HookGuardEnv + "=1"}
	for _, kv := range os.Environ() {
		// CLAUDECODE marks an active session; clearing it allows the
		// nested pipe-mode call.
		if strings.HasPrefix(kv, "CLAUDECODE=") || strings.HasPrefix(kv, HookGuardEnv+"=") {
			continue
		}
		env = append(env, kv)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[:500]
		}
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("claude -p timed out after %s", c.timeout)
		}
		return "", fmt.Errorf("claude -p: %w: %s", err, msg)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", fmt.Errorf("claude -p returned empty output")
	}
	return out, nil
}
