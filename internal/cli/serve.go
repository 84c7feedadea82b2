package cli

import (
	"pinrelay/internal/api"
	"pinrelay/internal/pub"
	"pinrelay/internal/types"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP server",
	Long: `Runs the admin API on PORT. Backends and the messaging channel are selected by
CLIENT_BACKEND, LIMIT_BACKEND and CHANNEL_BACKEND. SEED_FILE, when set, adds the clients it
lists to the registry before the server starts. Clients already in the registry are left as they are.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	b, err := openBackends(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = b.Close()
	}()

	n, err := SeedFromFile(ctx, b.Clients, settings.SeedFile)
	if err != nil {
		return err
	}
	if n > 0 {
		log.WithFields(log.Fields{"file": settings.SeedFile, "clients": n}).Info("registry seeded")
	}

	channel, err := pub.Open(ctx, settings)
	if err != nil {
		return err
	}

	return api.RunServer(ctx, settings.Port, b.Clients, b.Limiter, channel, api.Options{
		Messages:        types.MessagesFor(settings.Locale),
		ResetRPM:        settings.ResetRPM,
		DeliveryTimeout: settings.DeliveryTimeout,
	})
}
