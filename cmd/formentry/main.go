// Command formentry is the command-line front end of the form entry engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/formentry/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
