package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the content agent system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agent     AgentConfig     `mapstructure:"agent"`
	LinkedIn  LinkedInConfig  `mapstructure:"linkedin"`
	Trends    TrendsConfig    `mapstructure:"trends"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Gap       GapConfig       `mapstructure:"gap"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai for now
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model to use for different tasks
type LLMRoutingConfig struct {
	Agent     string `mapstructure:"agent"`     // tool-call orchestration turns
	Analysis  string `mapstructure:"analysis"`  // keyword/style extraction
	Synthesis string `mapstructure:"synthesis"` // trend digestion and post writing
	Embedding string `mapstructure:"embedding"` // gap analysis vectors
	Fallback  string `mapstructure:"fallback"`  // fallback model
}

// AgentConfig bounds the tool-call loop.
type AgentConfig struct {
	MaxSteps          int           `mapstructure:"max_steps"`
	StepTimeout       time.Duration `mapstructure:"step_timeout"`
	ToolTimeout       time.Duration `mapstructure:"tool_timeout"`
	CorpusCharLimit   int           `mapstructure:"corpus_char_limit"`
	ReuseSameProfile  bool          `mapstructure:"reuse_same_profile"`
	StreamHeartbeat   time.Duration `mapstructure:"stream_heartbeat"`
	ProgressInterval  time.Duration `mapstructure:"progress_interval"`
	MaxPostsPerScrape int           `mapstructure:"max_posts_per_scrape"`
}

func (a AgentConfig) Validate() error {
	if a.MaxSteps < 1 {
		return fmt.Errorf("agent.max_steps must be >= 1")
	}
	if a.ToolTimeout <= 0 {
		return fmt.Errorf("agent.tool_timeout must be > 0")
	}
	return nil
}

// LinkedInConfig holds PhantomBuster agent wiring. API keys and session
// cookies arrive per request and are never read from here.
type LinkedInConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ScraperAgentID string        `mapstructure:"scraper_agent_id"`
	PosterAgentID  string        `mapstructure:"poster_agent_id"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

func (l LinkedInConfig) Validate() error {
	if l.PollInterval <= 0 {
		return fmt.Errorf("linkedin.poll_interval must be > 0")
	}
	if l.MaxWait < l.PollInterval {
		return fmt.Errorf("linkedin.max_wait must be >= linkedin.poll_interval")
	}
	return nil
}

// TrendsConfig holds Firecrawl search settings.
type TrendsConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	SearchLimit  int           `mapstructure:"search_limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FetchArticle bool          `mapstructure:"fetch_article"` // chromedp full-text fetch for thin results
	ArticleChars int           `mapstructure:"article_chars"`
}

// SheetsConfig holds Google Sheets service-account settings.
type SheetsConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	TokenURL        string        `mapstructure:"token_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// GapConfig holds gap-analysis thresholds.
type GapConfig struct {
	CoveredThreshold      float64 `mapstructure:"covered_threshold"`
	WeakThreshold         float64 `mapstructure:"weak_threshold"`
	TokenCoveredThreshold float64 `mapstructure:"token_covered_threshold"`
	TokenWeakThreshold    float64 `mapstructure:"token_weak_threshold"`
	MaxTrendsPerKeyword   int     `mapstructure:"max_trends_per_keyword"`
}

// Normalize applies defaults for unset gap thresholds.
func (g GapConfig) Normalize() GapConfig {
	if g.CoveredThreshold <= 0 {
		g.CoveredThreshold = 0.65
	}
	if g.WeakThreshold <= 0 {
		g.WeakThreshold = 0.4
	}
	if g.TokenCoveredThreshold <= 0 {
		g.TokenCoveredThreshold = 0.7
	}
	if g.TokenWeakThreshold <= 0 {
		g.TokenWeakThreshold = 0.4
	}
	if g.MaxTrendsPerKeyword <= 0 {
		g.MaxTrendsPerKeyword = 5
	}
	return g
}

func (g GapConfig) Validate() error {
	if g.WeakThreshold > g.CoveredThreshold {
		return fmt.Errorf("gap.weak_threshold cannot exceed gap.covered_threshold")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a lib/pq connection string from the configured parts.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, ssl)
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	LogFile      string `mapstructure:"log_file"`
	CostTracking bool   `mapstructure:"cost_tracking"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// SchedulerConfig controls the autopost scheduler loop.
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

// Normalize applies defaults for unset scheduler values.
func (s SchedulerConfig) Normalize() SchedulerConfig {
	if s.TickInterval <= 0 {
		s.TickInterval = time.Hour
	}
	if s.LockTTL <= 0 {
		s.LockTTL = 2 * time.Minute
	}
	return s
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("server.address", ":10001")
	viper.SetDefault("agent.max_steps", 10)
	viper.SetDefault("agent.step_timeout", "120s")
	viper.SetDefault("agent.tool_timeout", "240s")
	viper.SetDefault("agent.corpus_char_limit", 15000)
	viper.SetDefault("agent.reuse_same_profile", true)
	viper.SetDefault("agent.progress_interval", "15s")
	viper.SetDefault("agent.max_posts_per_scrape", 20)
	viper.SetDefault("linkedin.base_url", "https://api.phantombuster.com")
	viper.SetDefault("linkedin.poll_interval", "5s")
	viper.SetDefault("linkedin.max_wait", "180s")
	viper.SetDefault("linkedin.cache_ttl", "30m")
	viper.SetDefault("trends.base_url", "https://api.firecrawl.dev")
	viper.SetDefault("trends.search_limit", 5)
	viper.SetDefault("trends.timeout", "30s")
	viper.SetDefault("trends.article_chars", 8000)
	viper.SetDefault("sheets.token_url", "https://oauth2.googleapis.com/token")
	viper.SetDefault("sheets.timeout", "30s")
	viper.SetDefault("scheduler.enabled", false)

	if path == "" {
		viper.AddConfigPath("./app/config") // path to look for the config file in
		viper.AddConfigPath("./config")     // path to look for the config file in
		viper.AddConfigPath(".")            // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                                // bin/
		viper.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CONTENTAGENT")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (CONTENTAGENT_*)

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	// unmarshal config
	var config Config

	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Gap = config.Gap.Normalize()
	config.Scheduler = config.Scheduler.Normalize()

	if err := config.Agent.Validate(); err != nil {
		panic(err)
	}
	if err := config.LinkedIn.Validate(); err != nil {
		panic(err)
	}
	if err := config.Gap.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	return &config
}
