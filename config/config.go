package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the StudyFlow backend.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Janitor   JanitorConfig   `mapstructure:"janitor"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Listen    string `mapstructure:"listen"`
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Env       string `mapstructure:"env"` // "dev" or "prod"
}

// ProvidersConfig groups external LLM provider settings.
type ProvidersConfig struct {
	Groq GroqConfig `mapstructure:"groq"`
}

// GroqConfig configures the Groq OpenAI-compatible endpoints.
type GroqConfig struct {
	APIKey           string            `mapstructure:"api_key"`
	ChatURL          string            `mapstructure:"chat_url"`
	TranscriptionURL string            `mapstructure:"transcription_url"`
	WhisperModel     string            `mapstructure:"whisper_model"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	Models           map[string]string `mapstructure:"models"` // category -> model id override
}

// DatabasesConfig groups storage backends.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a Postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host    string        `mapstructure:"host"`
	Port    string        `mapstructure:"port"`
	Pass    string        `mapstructure:"pass"`
	DB      int           `mapstructure:"db"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Addr returns host:port, or empty when redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

// RetrievalConfig tunes the RAG chunker and retriever.
type RetrievalConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`
}

func (r RetrievalConfig) Validate() error {
	if r.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunk_size must be > 0")
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap must be in [0, chunk_size)")
	}
	if r.TopK < 2 {
		return fmt.Errorf("retrieval.top_k must be >= 2")
	}
	return nil
}

// JanitorConfig controls the retention cleanup job.
type JanitorConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Schedule  string        `mapstructure:"schedule"` // cron expression
	Retention time.Duration `mapstructure:"retention"`
}

// LoadConfig loads config from file (or the default search paths) with
// STUDYFLOW_* environment overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":8080")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.env", "dev")
	viper.SetDefault("providers.groq.chat_url", "https://api.groq.com/openai/v1/chat/completions")
	viper.SetDefault("providers.groq.transcription_url", "https://api.groq.com/openai/v1/audio/transcriptions")
	viper.SetDefault("providers.groq.whisper_model", "whisper-large-v3-turbo")
	viper.SetDefault("providers.groq.timeout", 60*time.Second)
	viper.SetDefault("databases.postgres.sslmode", "disable")
	viper.SetDefault("databases.redis.timeout", 5*time.Second)
	viper.SetDefault("retrieval.chunk_size", 400)
	viper.SetDefault("retrieval.chunk_overlap", 80)
	viper.SetDefault("retrieval.top_k", 8)
	viper.SetDefault("janitor.enabled", false)
	viper.SetDefault("janitor.schedule", "0 * * * *")
	viper.SetDefault("janitor.retention", 90*24*time.Hour)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("STUDYFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// config file is optional; env + defaults must be able to carry a deploy
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if err := config.Retrieval.Validate(); err != nil {
		panic(err)
	}
	return &config
}
