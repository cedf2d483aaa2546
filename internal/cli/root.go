// Package cli implements the foodseer assistant commands.
package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"foodseer/internal/config"
	"foodseer/internal/session"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "FoodSeer chat assistant",
	Long:  "Conversation engine for the FoodSeer food-ordering assistant: guided recommendation dialogue, freeform Q&A and per-user session persistence.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: .env file not found: %v", err)
		}
	},
}

func loadConfig() *config.Config {
	return config.New()
}

// openStore builds the session store the configuration asks for.
// The caller owns the returned closer (nil for stores without one).
func openStore(cfg *config.Config) (session.Store, func(), error) {
	switch cfg.StateBackend {
	case "memory":
		return session.NewMemoryStore(), nil, nil
	case "bolt":
		st, err := session.NewBoltStore(cfg.StateBoltPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt store: %w", err)
		}
		return st, func() { _ = st.Close() }, nil
	case "file":
		st, err := session.NewFileStore(cfg.StateFilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return st, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend: %s", cfg.StateBackend)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
