package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/softwareheritage/swh-dedup/src/internal/cmdutil"
	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"github.com/softwareheritage/swh-dedup/src/internal/pctx"
	"github.com/softwareheritage/swh-dedup/src/internal/signals"
	"github.com/softwareheritage/swh-dedup/src/server/cmd/swh-dedup/cmd"
	"github.com/softwareheritage/swh-dedup/src/server/dedup"
	"github.com/spf13/pflag"
)

func main() {
	cmdutil.Main(context.Background(), do, &dedup.Config{}, cmdutil.EnvFile{Path: ".env", Optional: true})
}

func do(ctx context.Context, config *dedup.Config) error {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	done, err := log.InitLogger(config.Log)
	if err != nil {
		return err
	}
	defer done()
	ctx, stop := signal.NotifyContext(ctx, signals.TerminationSignals...)
	defer stop()
	ctx = pctx.Child(log.AddLogger(ctx), "swh-dedup")
	return cmd.RootCmd(ctx, config).Execute() //nolint:wrapcheck
}
