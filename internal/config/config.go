package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type StoreDriver string

const (
	StoreFile   StoreDriver = "file"
	StoreSQLite StoreDriver = "sqlite"
)

type Config struct {
	Port string `env:"PORT" envDefault:"3000"`

	// LLM settings. Groq and OpenRouter work through OPENAI_BASE_URL.
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"llama-3.1-8b-instant"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`
	LLMTimeout       time.Duration `env:"LLM_TIMEOUT" envDefault:"8s"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH"`

	// Storage
	StoreDriver  StoreDriver `env:"STORE_DRIVER" envDefault:"file"`
	StorePath    string      `env:"STORE_PATH" envDefault:"data/memory.json"`
	SQLitePath   string      `env:"SQLITE_PATH" envDefault:"data/memory.db"`
	LogFilePath  string      `env:"LOG_FILE_PATH" envDefault:"logs/interactions.jsonl"`
	HistoryLimit int         `env:"HISTORY_LIMIT" envDefault:"20"`

	// Reminders
	ReminderInterval  time.Duration `env:"REMINDER_INTERVAL" envDefault:"30s"`
	ReminderBeforeMin time.Duration `env:"REMINDER_BEFORE_MIN" envDefault:"0s"`
	ReminderBefore    time.Duration `env:"REMINDER_BEFORE" envDefault:"5m"`
	ReminderAfter     time.Duration `env:"REMINDER_AFTER_DELAY" envDefault:"2m"`
	ReminderAfterMax  time.Duration `env:"REMINDER_AFTER_MAX" envDefault:"2h"`
	DefaultOffset     time.Duration `env:"DEFAULT_EVENT_OFFSET" envDefault:"5m"`
	ReportCron        string        `env:"REPORT_CRON" envDefault:"0 21 * * *"`

	// Push delivery
	FirebaseServiceAccount string        `env:"FIREBASE_SERVICE_ACCOUNT"`
	FirebaseProjectID      string        `env:"FIREBASE_PROJECT_ID"`
	TelegramBotToken       string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowedUsers   []int64       `env:"TELEGRAM_ALLOWED_USERS" envSeparator:","`
	PushTimeout            time.Duration `env:"PUSH_TIMEOUT" envDefault:"5s"`

	// Operator endpoints (/push). Empty disables the check.
	AdminToken string `env:"ADMIN_TOKEN"`
}

func New() *Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// LoadDotEnv loads variables from the given files; already set variables win.
func LoadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
}

// Parse reads the environment without exiting on error.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.DefaultOffset <= 0 {
		cfg.DefaultOffset = 5 * time.Minute
	}
	return cfg, nil
}
