package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"foodseer/internal/auth"
	"foodseer/internal/backend"
	"foodseer/internal/chat"
	"foodseer/internal/config"
	"foodseer/internal/httpapi"
	"foodseer/internal/llm"
	"foodseer/internal/scheduler"
	"foodseer/internal/speech"
	"foodseer/internal/storage"
	"foodseer/internal/telegram"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant API (and the Telegram front end when configured)",
		Run:   runServe,
	}
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		exitErr("init session store", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	tokens, err := tokenSource(cfg)
	if err != nil {
		exitErr("init token source", err)
	}
	be := backend.New(cfg.BackendBaseURL, tokens)

	completer, err := newCompleter(cfg, be)
	if err != nil {
		exitErr("init completion service", err)
	}

	var seq chat.Sequencer = chat.StaticSequencer{}
	if cfg.SequencerStrategy == "dynamic" {
		seq = chat.DynamicSequencer{Completer: completer}
	}

	var synth speech.Synthesizer = speech.Noop{}
	if cfg.SpeechCommand != "" {
		synth = speech.Command{Bin: cfg.SpeechCommand}
	}

	var rec storage.Recorder
	if cfg.LogFilePath != "" {
		fr, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.Printf("failed to init file recorder: %v", err)
		} else {
			rec = fr
		}
	}

	manager := chat.NewManager(func(userID int64) *chat.Orchestrator {
		return chat.NewOrchestrator(userID, store, be, completer, seq, synth, rec)
	})

	sched := scheduler.New(cfg.PurgeCron)
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	sched.SetPurgeFunction(func(ctx context.Context) (int, error) {
		return store.Purge(ttl)
	})
	if err := sched.Start(); err != nil {
		log.Printf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, manager)
		if err != nil {
			log.Printf("failed to create telegram bot: %v", err)
		} else {
			go bot.Start(cmd.Context())
		}
	}

	srv := httpapi.New(cfg.ListenAddr, manager, rec)
	if err := srv.Start(); err != nil {
		exitErr("serve", err)
	}
}

func tokenSource(cfg *config.Config) (auth.TokenSource, error) {
	if cfg.TokenFilePath != "" {
		return auth.NewFileTokenStore(cfg.TokenFilePath)
	}
	return auth.StaticToken(cfg.BackendToken), nil
}

func newCompleter(cfg *config.Config, be *backend.Client) (chat.Completer, error) {
	switch cfg.CompletionMode {
	case config.CompletionBackend:
		return chat.BackendCompleter{Client: be}, nil
	case config.CompletionDirect:
		f := &llm.Factory{
			OpenaiAPIKey:       cfg.OpenAIAPIKey,
			OpenaiBaseURL:      cfg.OpenAIBaseURL,
			OpenRouterReferrer: cfg.OpenRouterReferrer,
			OpenRouterTitle:    cfg.OpenRouterTitle,
			YandexOAuthToken:   cfg.YandexOAuthToken,
			YandexFolderID:     cfg.YandexFolderID,
		}
		client, err := f.CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("create llm client: %w", err)
		}
		return chat.LLMCompleter{Client: client}, nil
	default:
		return nil, fmt.Errorf("unknown completion mode: %s", cfg.CompletionMode)
	}
}
