package main

import (
    "context"
    "errors"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "github.com/spf13/cobra"

    "github.com/iliyamo/notes-marketplace/internal/config"
    "github.com/iliyamo/notes-marketplace/internal/logging"
    "github.com/iliyamo/notes-marketplace/internal/queue"
)

func consumeCmd() *cobra.Command {
    var dir string
    cmd := &cobra.Command{
        Use:   "consume",
        Short: "Append purchase and withdrawal events to audit log files",
        RunE: func(cmd *cobra.Command, args []string) error {
            amqpCfg := config.LoadAMQPConfig()
            if amqpCfg.URL == "" {
                return errors.New("AMQP_URL is not set")
            }
            if dir == "" {
                dir = amqpCfg.LogDir
            }
            log := logging.NewSlogLogger(logging.New(logConfig(config.LoadLogConfig()), nil))

            ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
            defer stop()

            c := &queue.Consumer{URL: amqpCfg.URL, Dir: dir, Log: log.With("component", "consumer")}
            log.Info(ctx, "consumer started", "dir", dir)
            if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
                return fmt.Errorf("consumer: %w", err)
            }
            log.Info(context.Background(), "consumer stopped")
            return nil
        },
    }
    cmd.Flags().StringVar(&dir, "dir", "", "directory for event logs (default EVENT_LOG_DIR)")
    return cmd
}

func logConfig(c config.LogConfig) logging.Config {
    return logging.Config{Level: c.Level, Format: c.Format}
}
