package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "skillmatch"
)

type Config struct {
	Telegram *TelegramConfig `mapstructure:"telegram"`
	Storage  *StorageConfig  `mapstructure:"storage"`
	Session  *SessionConfig  `mapstructure:"session"`
	Workers  int             `mapstructure:"workers"`
	Catalog  *CatalogConfig  `mapstructure:"catalog"`
	AI       *AIConfig       `mapstructure:"ai"`
}

type TelegramConfig struct {
	Token       string         `mapstructure:"token"`
	TokenFile   string         `mapstructure:"token-file"`
	APIURL      string         `mapstructure:"api-url"`
	UserAgent   string         `mapstructure:"user-agent"`
	Mode        string         `mapstructure:"mode"`
	PollTimeout int            `mapstructure:"poll-timeout"`
	Webhook     *WebhookConfig `mapstructure:"webhook"`
}

type WebhookConfig struct {
	// URL is the public address Telegram posts updates to.
	URL         string `mapstructure:"url"`
	Listen      string `mapstructure:"listen"`
	Path        string `mapstructure:"path"`
	SecretToken string `mapstructure:"secret-token"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	IdleTTL time.Duration `mapstructure:"idle-ttl"`
}

type CatalogConfig struct {
	Tags []string `mapstructure:"tags"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "skillmatch is a Telegram bot that matches student profiles by shared skills",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	bindEnv := map[string]string{
		"telegram.token-file":    "BOT_TOKEN_FILE",
		"storage.path":           "SKILLMATCH_DB",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	}
	for key, env := range bindEnv {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("telegram.api-url", "https://api.telegram.org")
	viper.SetDefault("telegram.mode", modePolling)
	viper.SetDefault("telegram.poll-timeout", 30)
	viper.SetDefault("telegram.webhook.listen", ":8080")
	viper.SetDefault("telegram.webhook.path", "/telegram/webhook")
	viper.SetDefault("storage.path", "data.db")
	viper.SetDefault("session.idle-ttl", "24h")
	viper.SetDefault("workers", 4)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", "5s")
	viper.SetDefault("ai.gemini.max-retries", 2)
	viper.SetDefault("ai.gemini.max-log-length", 200)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is skillmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only by the commands that talk to users.
	if runCmd.CalledAs() == "" && consoleCmd.CalledAs() == "" {
		return
	}

	// A .env file is optional; the environment itself wins over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Everything has a default or an env binding, so only an explicit
		// config file is mandatory.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Telegram == nil {
		config.Telegram = &TelegramConfig{}
	}
	if config.Telegram.Webhook == nil {
		config.Telegram.Webhook = &WebhookConfig{}
	}
	if config.Storage == nil {
		config.Storage = &StorageConfig{}
	}
	if config.Session == nil {
		config.Session = &SessionConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}

	return config, nil
}
