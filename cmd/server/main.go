package main // notesd: HTTP API, schema migrations and the event consumer

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"

    "github.com/iliyamo/notes-marketplace/internal/config"
)

var Version = "dev"

func main() {
    var envFile string
    rootCmd := &cobra.Command{
        Use:     "notesd",
        Short:   "Study notes marketplace backend",
        Version: Version,
        PersistentPreRun: func(cmd *cobra.Command, args []string) {
            if envFile != "" {
                config.LoadDotEnv(envFile)
                return
            }
            config.LoadDotEnv()
        },
        SilenceUsage: true,
    }
    rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

    rootCmd.AddCommand(serveCmd())
    rootCmd.AddCommand(migrateCmd())
    rootCmd.AddCommand(consumeCmd())

    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}
