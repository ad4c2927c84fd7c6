package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lumos-Labs-HQ/orgseed/internal/api"
	"github.com/Lumos-Labs-HQ/orgseed/internal/logger"
	"github.com/Lumos-Labs-HQ/orgseed/internal/seeder"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the orgseed HTTP API",
	Long: `
Start an HTTP server that computes load sequences, starts load sessions in
the background, streams their progress and restores suspended rules.

Examples:
  orgseed serve
  orgseed serve --port 8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		store, err := openRemote(cfg)
		if err != nil {
			return err
		}
		snapshots, err := openState(cfg)
		if err != nil {
			return err
		}
		defer snapshots.Close()

		port, _ := cmd.Flags().GetInt("port")

		sessions := seeder.NewSessions(store, snapshots, seederOptions(cfg))
		server := api.NewServer(store, snapshots, sessions, logger.Console{})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			server.Shutdown()
		}()

		err = server.Start(port)
		sessions.CancelAll()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 4567, "Port to listen on")
}
