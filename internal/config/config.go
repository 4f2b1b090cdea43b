package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the bioatlas API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Elastic   ElasticConfig   `yaml:"elastic"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Personas  PersonasConfig  `yaml:"personas"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // generous: streamed answers share it
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ElasticConfig holds document store connection and inference settings.
type ElasticConfig struct {
	URL                string `yaml:"url"`
	APIKey             string `yaml:"api_key"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	Index              string `yaml:"index"`
	ModelID            string `yaml:"model_id"` // text_embedding inference endpoint id
	TimeoutSec         int    `yaml:"timeout_sec"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// EmbeddingConfig selects and tunes the query embedding provider.
type EmbeddingConfig struct {
	Provider         string             `yaml:"provider"` // elastic, openai (default: elastic)
	QueryInstruction string             `yaml:"query_instruction"`
	OpenAI           OpenAIEmbedsConfig `yaml:"openai"`
}

// OpenAIEmbedsConfig holds settings for the OpenAI-compatible embedding provider.
type OpenAIEmbedsConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// LLMConfig holds the generative backend settings.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RetrievalConfig holds evidence selection and context sizing settings.
type RetrievalConfig struct {
	TopK             int `yaml:"top_k"`
	NumCandidates    int `yaml:"num_candidates"`
	ContextBudget    int `yaml:"context_budget_chars"`
	PassageCharLimit int `yaml:"passage_char_limit"`
	SnippetCharLimit int `yaml:"snippet_char_limit"`
}

// CacheConfig holds the optional query-embedding cache settings.
// An empty addrs list disables caching.
type CacheConfig struct {
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	TTLSec    int      `yaml:"ttl_sec"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// PersonasConfig names the default audience profile and overrides the built-ins.
type PersonasConfig struct {
	Default  string                    `yaml:"default"`
	Profiles map[string]PersonaProfile `yaml:"profiles"`
}

// PersonaProfile tunes generation for one audience.
type PersonaProfile struct {
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Elastic.Index == "" {
		c.Elastic.Index = "spacehacks"
	}
	if c.Elastic.ModelID == "" {
		c.Elastic.ModelID = ".multilingual-e5-small-elasticsearch"
	}
	if c.Elastic.TimeoutSec <= 0 {
		c.Elastic.TimeoutSec = 30
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "elastic"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 4
	}
	if c.Retrieval.NumCandidates <= 0 {
		c.Retrieval.NumCandidates = 50
	}
	if c.Retrieval.ContextBudget <= 0 {
		c.Retrieval.ContextBudget = 3600
	}
	if c.Retrieval.PassageCharLimit <= 0 {
		c.Retrieval.PassageCharLimit = 1200
	}
	if c.Retrieval.SnippetCharLimit <= 0 {
		c.Retrieval.SnippetCharLimit = 300
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 86400
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "bioatlas:"
	}
	if c.Personas.Default == "" {
		c.Personas.Default = "scientist"
	}
}

// Validate checks the configuration for correctness. Connection parameters
// the pipeline cannot run without are rejected here, before any network call.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Elastic.URL == "" {
		return fmt.Errorf("elastic.url is required")
	}
	switch c.Embedding.Provider {
	case "elastic", "openai":
		// ok
	default:
		return fmt.Errorf("embedding.provider must be \"elastic\" or \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.OpenAI.Model == "" {
		return fmt.Errorf("embedding.openai.model is required when embedding.provider is \"openai\"")
	}
	if c.Retrieval.NumCandidates < c.Retrieval.TopK {
		return fmt.Errorf("retrieval.num_candidates must be >= retrieval.top_k, got %d < %d",
			c.Retrieval.NumCandidates, c.Retrieval.TopK)
	}
	for name, p := range c.Personas.Profiles {
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("personas.profiles.%s.temperature must be between 0 and 2, got %v", name, p.Temperature)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
