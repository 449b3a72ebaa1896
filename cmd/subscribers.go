package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dsaquest/contestscope/pkg/storage"
	"github.com/spf13/cobra"
)

var subscribersCmd = &cobra.Command{
	Use:     "subscribers",
	Aliases: []string{"subs"},
	Short:   "Manage who receives the daily digest",
}

var subscribersAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		s, err := db.AddSubscriber(cmd.Context(), args[0], name)
		if errors.Is(err, storage.ErrSubscriberExists) {
			fmt.Printf("%s is already subscribed.\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (id %d).\n", s.Email, s.ID)
		return nil
	},
}

var subscribersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		enabledOnly, _ := cmd.Flags().GetBool("enabled")

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		subs, err := db.ListSubscribers(cmd.Context(), enabledOnly)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			fmt.Println("No subscribers yet. Add one with 'contestscope subscribers add <email>'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tENABLED\tSINCE\t")
		for _, s := range subs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t\n", s.ID, s.Email, s.Name, s.Enabled, s.CreatedAt.UTC().Format(time.DateOnly))
		}
		w.Flush()
		return nil
	},
}

var subscribersRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove a subscriber and stop their digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.RemoveSubscriber(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s.\n", args[0])
		return nil
	},
}

func setEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.SetSubscriberEnabled(cmd.Context(), args[0], enabled)
		},
	}
}

func init() {
	rootCmd.AddCommand(subscribersCmd)
	subscribersCmd.AddCommand(subscribersAddCmd)
	subscribersCmd.AddCommand(subscribersListCmd)
	subscribersCmd.AddCommand(subscribersRemoveCmd)
	subscribersCmd.AddCommand(setEnabledCmd("enable", "Resume the digest for a subscriber", true))
	subscribersCmd.AddCommand(setEnabledCmd("disable", "Pause the digest for a subscriber without removing them", false))

	subscribersAddCmd.Flags().String("name", "", "Name used in the greeting")
	subscribersListCmd.Flags().Bool("enabled", false, "Only list enabled subscribers")
}
