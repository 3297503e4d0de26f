package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all animus configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Souls      SoulsConfig      `mapstructure:"souls"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Entropy    EntropyConfig    `mapstructure:"entropy"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Diag       DiagConfig       `mapstructure:"diag"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type SoulsConfig struct {
	Dir string `mapstructure:"dir"` // directory holding <slug>.soul.md files
}

type EmbeddingsConfig struct {
	Provider    string `mapstructure:"provider"` // "openai", "ollama", "none"
	OpenAIKey   string `mapstructure:"openai_key"`
	OpenAIModel string `mapstructure:"openai_model"`
	OllamaURL   string `mapstructure:"ollama_url"`
	OllamaModel string `mapstructure:"ollama_model"`
}

type EntropyConfig struct {
	DecayRate float64 `mapstructure:"decay_rate"` // per hour
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"` // empty = in-process arc state
}

type DiagConfig struct {
	Path string `mapstructure:"path"` // append-only diagnostic log
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37888,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Souls: SoulsConfig{
			Dir: "", // resolved at runtime to ~/.animus/souls
		},
		Embeddings: EmbeddingsConfig{
			Provider:    "ollama",
			OpenAIModel: "text-embedding-3-small",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "nomic-embed-text",
		},
		Entropy: EntropyConfig{
			DecayRate: 0.01,
		},
	}
}

// Load reads config from ~/.animus/config.toml (or the given path) with
// ANIMUS_* environment overrides layered on top of defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("animus")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("get home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".animus"))
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults + env apply. An explicitly
		// requested file that cannot be read is not.
		var notFound viper.ConfigFileNotFoundError
		if path != "" && !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
