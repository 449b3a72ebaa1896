package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dsaquest/contestscope/internal/utils"
	"github.com/dsaquest/contestscope/pkg/digest"
	"github.com/dsaquest/contestscope/pkg/whttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

// digestCmd implements: contestscope digest
//
//	--endpoint string   Read contests from a running server instead of fetching them here
//	--dry-run           Log the digests instead of sending them
var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Mail the contests starting in the next 24 hours to every enabled subscriber",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint, _ := cmd.Flags().GetString("endpoint")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		ctx := cmd.Context()

		db, dbPath, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		lock, err := utils.NewRunLock(dbPath)
		if err != nil {
			return err
		}
		if err := lock.TryLock(); err != nil {
			return err
		}
		defer lock.Unlock()

		sender, err := newSender(dryRun)
		if err != nil {
			return err
		}

		runner := &digest.Runner{
			Subscribers: db,
			Sender:      sender,
			OutcomeLog:  db,
			Window:      viper.GetDuration("digest.window"),
			Log:         utils.ComponentLog("digest"),
		}

		if endpoint != "" {
			proxy, _ := cmd.Flags().GetString("proxy")
			client, err := whttp.NewClient(whttp.ClientOptions{
				Timeout:  viper.GetDuration("http.timeout"),
				RetryMax: viper.GetInt("http.retries"),
				Proxy:    proxy,
			})
			if err != nil {
				return err
			}
			runner.Contests = digest.NewEndpointSource(endpoint, client)
		} else {
			p, err := newPipeline(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer p.Close()
			runner.Contests = p
		}

		sum, err := runner.Run(ctx, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Digest %s: %d contests, %d subscribers, %d sent, %d failed, %d skipped\n",
			sum.RunID, sum.ContestsCount, sum.TotalUsers, sum.EmailsSent, sum.EmailsFailed, sum.EmailsSkipped)
		for _, e := range sum.Errors {
			fmt.Printf("  %s\n", e)
		}
		return nil
	},
}

// digestTriggerCmd asks a running server to send the digest, the way an
// external scheduler does.
var digestTriggerCmd = &cobra.Command{
	Use:   "trigger <server-url>",
	Short: "Trigger the digest on a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := viper.GetString("digest.secret")
		if secret == "" {
			return errors.New("digest.secret is not set")
		}
		proxy, _ := cmd.Flags().GetString("proxy")
		// Never retry: a retried trigger could mail everyone twice.
		client, err := whttp.NewClient(whttp.ClientOptions{Timeout: 5 * time.Minute, RetryMax: 0, Proxy: proxy})
		if err != nil {
			return err
		}

		res, err := whttp.SendHTTPRequest(cmd.Context(), &whttp.WHTTPReq{
			Method: "POST",
			URL:    strings.TrimRight(args[0], "/") + "/api/cron/send-digest",
			Headers: []whttp.WHTTPHeader{
				{Name: "Authorization", Value: "Bearer " + secret},
				{Name: "Accept", Value: "application/json"},
			},
		}, client)
		if err != nil {
			return err
		}
		if !res.OK() {
			msg := gjson.Get(res.BodyString, "error").Str
			if msg == "" {
				msg = res.BodyString
			}
			return fmt.Errorf("trigger failed with HTTP %d: %s", res.StatusCode, msg)
		}
		fmt.Println(res.BodyString)
		return nil
	},
}

var digestLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recorded per-recipient digest outcomes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")
		limit, _ := cmd.Flags().GetInt("limit")

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListDigestLog(cmd.Context(), runID, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No digest runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIME\tRUN\tEMAIL\tSTATUS\tCONTESTS\tERROR\t")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t\n",
				e.OccurredAt.UTC().Format(time.RFC3339), e.RunID, e.Email, e.Status, e.ContestsCount, e.Error)
		}
		w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
	digestCmd.AddCommand(digestTriggerCmd)
	digestCmd.AddCommand(digestLogCmd)

	digestCmd.Flags().String("endpoint", "", "Base URL of a running contestscope server to read contests from")
	digestCmd.Flags().Bool("dry-run", false, "Log the digests instead of sending them")

	digestLogCmd.Flags().String("run", "", "Only show this run ID")
	digestLogCmd.Flags().Int("limit", 50, "Maximum number of entries")
}
