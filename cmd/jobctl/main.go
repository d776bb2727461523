// Command jobctl triggers and inspects background jobs by hand.
//
//	jobctl trigger summary:warmup
//	jobctl trigger idempotency:cleanup -retention 24
//	jobctl stats
//	jobctl archived -n 20
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/odyssey-erp/odyssey-b2b/internal/app"
	"github.com/odyssey-erp/odyssey-b2b/jobs"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	cli := NewJobsCLI(cfg.Redis("b2b-jobctl").Queue())
	defer func() {
		if err := cli.Close(); err != nil {
			logger.Warn("close jobs cli", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, cli, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("jobctl", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cli *JobsCLI, command string, args []string) error {
	switch command {
	case "trigger":
		fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
		retention := fs.Int("retention", jobs.DefaultKeyRetentionHours, "idempotency key retention in hours")
		if len(args) == 0 {
			return fmt.Errorf("trigger: job name required")
		}
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		info, err := cli.Trigger(ctx, args[0], *retention)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := cli.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	case "archived":
		fs := flag.NewFlagSet("archived", flag.ContinueOnError)
		size := fs.Int("n", 10, "number of tasks")
		if err := fs.Parse(args); err != nil {
			return err
		}
		tasks, err := cli.ListArchived(*size)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Printf("%s %s retried=%d last_error=%q\n", t.ID, t.Type, t.Retried, t.LastErr)
		}
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: jobctl trigger <summary:warmup|idempotency:cleanup> [-retention hours] | stats | archived [-n size]")
}
