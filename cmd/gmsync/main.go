// Package main provides the gmsync command, the batch tools that keep the
// GM roster and the scenario catalog in sync with the booking database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if ctx.Err() != nil && err != nil && !domainerrors.Is(err, domainerrors.ErrCanceled) {
		err = domainerrors.Wrap(err, domainerrors.CodeCanceled, "interrupted")
	}
	a.close(err)

	if err != nil {
		fmt.Fprintf(stderr, "gmsync: %v\n", err)
	}
	return domainerrors.ExitCode(err)
}
