// Command dobby runs fluent queries against an isolated SQLite execution
// service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "dobby:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
