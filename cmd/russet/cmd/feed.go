package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"russet/internal/service/feed"
)

var addFeedCmd = &cobra.Command{
	Use:   "add-feed <url>",
	Short: "subscribe the server to a feed without assigning any subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]

		conn, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		svc := feed.New(store.Feeds(), store.Entries(), feed.Config{
			HTTPClient: &http.Client{Timeout: 30 * time.Second},
			UserAgent:  "russet/1.0",
			Bounds: feed.ScheduleBounds{
				MinInterval:     cfg.FeedCheckInterval.Min,
				DefaultInterval: cfg.FeedCheckInterval.Default,
				MaxInterval:     cfg.FeedCheckInterval.Max,
			},
		})
		f, err := svc.AddFeed(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("add-feed: %w", err)
		}
		fmt.Printf("added feed %s (%s)\n", f.Title, f.ID)
		return nil
	},
}

// removeFeedCmd unsubscribes every current subscriber from a feed. Russet
// has no "delete feed" concept beyond that: a feed with no subscribers is
// simply dormant, not absent, so the running polling task is left to the
// supervisor rather than torn down here.
var removeFeedCmd = &cobra.Command{
	Use:   "remove-feed <url>",
	Short: "unsubscribe every user from a feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]

		conn, store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		f, err := store.Feeds().GetByURL(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("remove-feed: %w", err)
		}
		userIDs, err := store.Subscriptions().ListUserIDsForFeed(cmd.Context(), f.ID)
		if err != nil {
			return fmt.Errorf("remove-feed: %w", err)
		}
		for _, userID := range userIDs {
			if err := store.Subscriptions().Delete(cmd.Context(), userID, f.ID); err != nil {
				return fmt.Errorf("remove-feed: %w", err)
			}
		}
		fmt.Printf("removed %d subscription(s) to %s\n", len(userIDs), url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addFeedCmd, removeFeedCmd)
}
