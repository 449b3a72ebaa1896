package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dsaquest/contestscope/internal/utils"
	"github.com/dsaquest/contestscope/pkg/contest"
	"github.com/dsaquest/contestscope/pkg/digest"
	"github.com/spf13/cobra"
)

// fetchCmd implements: contestscope fetch
//
//	--ranked       Order by priority tier instead of start time
//	--hours int    Only contests starting within the next N hours
//	--json         Print the full aggregation result as JSON
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch every source once and print the merged contest list",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'contestscope fetch --help'", args[0])
		}
		ranked, _ := cmd.Flags().GetBool("ranked")
		hours, _ := cmd.Flags().GetInt("hours")
		asJSON, _ := cmd.Flags().GetBool("json")

		p, err := newPipeline(cmd.Context(), cmd, nil)
		if err != nil {
			return err
		}
		defer p.Close()

		res := p.agg.Aggregate(cmd.Context())
		for _, r := range res.Sources {
			if r.Error != "" {
				utils.Log.Warnf("%s failed after %dms: %s", r.Source, r.ElapsedMs, r.Error)
				continue
			}
			utils.Log.Infof("%s: %d contests in %dms", r.Source, r.Contests, r.ElapsedMs)
		}

		now := time.Now()
		contests := res.Contests
		if hours > 0 {
			contests = digest.SelectWithinWindow(contests, now, now.Add(time.Duration(hours)*time.Hour))
		}
		if ranked {
			table, err := rankingTable()
			if err != nil {
				return err
			}
			contests = table.Rank(contests, now)
		}

		if asJSON {
			res.Contests = contests
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		if len(contests) == 0 {
			fmt.Println("No upcoming contests found.")
			return nil
		}
		printContests(contests, now)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().Bool("ranked", false, "Order by priority tier instead of start time")
	fetchCmd.Flags().Int("hours", 0, "Only contests starting within the next N hours (0 = all)")
	fetchCmd.Flags().Bool("json", false, "Print the aggregation result as JSON")
}

func printContests(contests []contest.Contest, now time.Time) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "START (UTC)\tDURATION\tPLATFORM\tTITLE\tURL\t")
	for _, c := range contests {
		start := c.StartTime.UTC().Format("2006-01-02 15:04")
		if c.IsLive(now) {
			start += " (live)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", start, digest.FormatDuration(c), c.Platform, c.Title, c.URL)
	}
	w.Flush()
}
