package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dsaquest/contestscope/internal/server"
	"github.com/dsaquest/contestscope/internal/utils"
	"github.com/dsaquest/contestscope/pkg/digest"
	"github.com/dsaquest/contestscope/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the contest API and the digest trigger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := metrics.New()
		p, err := newPipeline(ctx, cmd, m)
		if err != nil {
			return err
		}
		defer p.Close()

		table, err := rankingTable()
		if err != nil {
			return err
		}

		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		sender, err := newSender(false)
		if err != nil {
			return err
		}

		secret := viper.GetString("digest.secret")
		if secret == "" {
			utils.Log.Warn("digest.secret not set: /api/cron/send-digest is disabled.")
		}

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = viper.GetString("server.listen")
		}

		srv := server.New(server.Config{
			Cache:   p.cache,
			Load:    p.load,
			Ranking: table,
			Digest: &digest.Runner{
				Contests:    p,
				Subscribers: db,
				Sender:      sender,
				OutcomeLog:  db,
				Window:      viper.GetDuration("digest.window"),
				Log:         utils.ComponentLog("digest"),
				Metrics:     m,
			},
			DigestSecret:   secret,
			DigestLockPath: dbPath,
			Metrics:        m,
			CORSOrigins:    configList("server.cors_origins"),
			Log:            utils.ComponentLog("server"),
		})
		return srv.Start(ctx, listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default: server.listen, :8080)")
}
