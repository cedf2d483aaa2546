package config

import (
	"log"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

// Completion modes: "backend" routes chat calls through the FoodSeer
// backend; "direct" talks to a model endpoint itself.
const (
	CompletionBackend = "backend"
	CompletionDirect  = "direct"
)

type Config struct {
	// FoodSeer backend
	BackendBaseURL string `env:"BACKEND_BASE_URL" envDefault:"http://localhost:8080"`
	BackendToken   string `env:"BACKEND_TOKEN"`
	TokenFilePath  string `env:"TOKEN_FILE_PATH"`

	// Completion service
	CompletionMode string `env:"COMPLETION_MODE" envDefault:"backend"`

	// Direct LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Conversation
	SequencerStrategy string `env:"SEQUENCER_STRATEGY" envDefault:"static"` // static|dynamic

	// Session persistence
	StateBackend  string `env:"STATE_BACKEND" envDefault:"file"` // memory|file|bolt
	StateFilePath string `env:"STATE_FILE_PATH" envDefault:"data/sessions.json"`
	StateBoltPath string `env:"STATE_BOLT_PATH" envDefault:"data/sessions.bolt"`

	// Interaction log
	LogFilePath string `env:"LOG_FILE_PATH" envDefault:"logs/interactions.jsonl"`

	// Maintenance
	SessionTTLHours int    `env:"SESSION_TTL_HOURS" envDefault:"168"`
	PurgeCron       string `env:"PURGE_CRON" envDefault:"0 3 * * *"`

	// Front ends
	ListenAddr       string `env:"LISTEN_ADDR" envDefault:":8090"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	// Optional TTS, e.g. "espeak" or "say"
	SpeechCommand string `env:"SPEECH_COMMAND"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
