package cli

import (
	"context"
	"os"

	"github.com/uber-go/tally/v4"
)

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the semantic
// exit code plus any error.
func Run(ctx context.Context, args []string) (Result, error) {
	inv, err := ParseInvocation(args)
	if err != nil {
		return Result{ExitCode: ExitCode(err)}, err
	}
	return Execute(ctx, inv)
}

// Execute runs inv with logs on stderr and no metrics reporter.
func Execute(ctx context.Context, inv Invocation) (Result, error) {
	return ExecuteWithEnv(ctx, inv, Env{Stderr: os.Stderr, Scope: tally.NoopScope})
}
