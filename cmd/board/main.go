package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/client"
	"github.com/BuzzLyutic/taskboard/internal/config"
	"github.com/BuzzLyutic/taskboard/internal/model"
)

type options struct {
	server  string
	token   string
	siteURL string
	path    string
	logFile string
	workers int
	queue   int
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Realtime Kanban task board",
	Long: `Open the task board in the terminal.

Sign in with Google from the landing page, or pass an access token with
--token. Changes made anywhere show up live.`,
	SilenceUsage: true,
	RunE:         runBoard,
}

func main() {
	cfg := config.Load()

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("TASKBOARD_SERVER", "http://localhost:8080"), "task board server address")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("TASKBOARD_TOKEN"), "access token of an existing session")
	rootCmd.PersistentFlags().StringVar(&opts.siteURL, "site-url", cfg.BaseURL(), "public address the sign-in redirect returns to")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "write logs to this file")
	rootCmd.Flags().IntVar(&opts.workers, "workers", cfg.WorkerCount, "concurrent drag-and-drop writes")
	rootCmd.Flags().IntVar(&opts.queue, "queue", cfg.WorkerQueue, "pending drag-and-drop writes before moves block")
	rootCmd.Flags().StringVar(&opts.path, "path", "/", "entry path; /auth/callback starts on the sign-in completion page")

	rootCmd.AddCommand(loginCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if opts.logFile == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{opts.logFile}
	cfg.ErrorOutputPaths = []string{opts.logFile}
	return cfg.Build()
}

func newClient(logger *zap.Logger) *client.Client {
	return client.New(opts.server, logger, client.WithToken(opts.token))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Print the address that starts Google sign-in",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(zap.NewNop())
		fmt.Fprintln(cmd.OutOrStdout(), c.SignInURL("google", opts.siteURL+"/auth/callback"))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts per column",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(zap.NewNop())
		stats, err := c.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-12s %d\n", "To Do:", stats.ByStatus[model.StatusTodo])
		fmt.Fprintf(out, "%-12s %d\n", "In Progress:", stats.ByStatus[model.StatusInProgress])
		fmt.Fprintf(out, "%-12s %d\n", "Completed:", stats.ByStatus[model.StatusDone])
		fmt.Fprintf(out, "%-12s %d\n", "TOTAL:", stats.TotalTasks)
		return nil
	},
}
