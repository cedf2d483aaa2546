package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"foodseer/internal/session"
)

var (
	purgeOlderThan time.Duration
	resetUserID    int64
)

func init() {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain persisted conversation state",
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete sessions idle past the given age",
		Run:   runPurge,
	}
	purge.Flags().DurationVar(&purgeOlderThan, "older-than", 7*24*time.Hour, "Minimum idle time before a session is deleted")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Reset one user's conversation to a fresh state",
		Run:   runReset,
	}
	reset.Flags().Int64Var(&resetUserID, "user", 0, "User id to reset")
	_ = reset.MarkFlagRequired("user")

	sessions.AddCommand(purge, reset)
	RootCmd.AddCommand(sessions)
}

func runPurge(cmd *cobra.Command, args []string) {
	store, closeStore, err := openStore(loadConfig())
	if err != nil {
		exitErr("init session store", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	n, err := store.Purge(purgeOlderThan)
	if err != nil {
		exitErr("purge", err)
	}
	fmt.Printf("purged %d sessions\n", n)
}

func runReset(cmd *cobra.Command, args []string) {
	store, closeStore, err := openStore(loadConfig())
	if err != nil {
		exitErr("init session store", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	if err := store.Save(resetUserID, session.NewState()); err != nil {
		exitErr("reset", err)
	}
	fmt.Printf("reset session for user %d\n", resetUserID)
}
