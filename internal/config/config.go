package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone    = "UTC"
	defaultAddr        = ":8080"
	defaultUserAgent   = "CDOPortal/1.0"
	defaultPacing      = 2 * time.Second
	defaultInterval    = 6 * time.Hour
	configPathEnv      = "CDOPORTAL_CONFIG"
	addrEnv            = "CDOPORTAL_ADDR"
	logLevelEnv        = "LOG_LEVEL"
	databaseDriverEnv  = "DATABASE_DRIVER"
	databaseDSNEnv     = "DATABASE_DSN"
	chatGPTAPIKeyEnv   = "CHATGPT_API_KEY"
	chatGPTModelEnv    = "CHATGPT_MODEL"
	usaJobsAPIKeyEnv   = "USAJOBS_API_KEY"
	usaJobsUAEnv       = "USAJOBS_USER_AGENT"
	adminJWTSecretEnv  = "ADMIN_JWT_SECRET"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	DriverSQLite       = "sqlite"
	DriverPostgres     = "postgres"
	defaultNewsLimit   = 15
	defaultJobsLimit   = 10
	defaultPolicyLimit = 15
)

// Config holds high-level settings required across the application.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Ingestion     IngestionConfig    `yaml:"ingestion"`
	Sources       []SourceConfig     `yaml:"sources"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Auth          AuthConfig         `yaml:"auth"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig selects the SQL driver and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines how often ingestion runs while serving.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// IngestionConfig tunes outbound fetching.
type IngestionConfig struct {
	Pacing        time.Duration `yaml:"pacing"`
	UserAgent     string        `yaml:"userAgent"`
	USAJobsAPIKey string        `yaml:"usajobsApiKey"`
	USAJobsAgent  string        `yaml:"usajobsUserAgent"`
}

// SourceConfig describes one external source; order in the list is ingestion order.
type SourceConfig struct {
	Kind     string            `yaml:"kind"`
	Name     string            `yaml:"name"`
	Source   string            `yaml:"source"`
	Scanner  string            `yaml:"scanner"`
	URL      string            `yaml:"url"`
	Category string            `yaml:"category"`
	Limit    int               `yaml:"limit"`
	Options  map[string]string `yaml:"options"`
}

// Label is the item source label, defaulting to the run-log name.
func (s SourceConfig) Label() string {
	if s.Source != "" {
		return s.Source
	}
	return s.Name
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// AuthConfig holds the HMAC secret used to verify admin tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultSources()
	}

	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SourcesOfKind returns the sources of a kind, in configuration order.
func SourcesOfKind(sources []SourceConfig, kind string) []SourceConfig {
	var out []SourceConfig
	for _, s := range sources {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(addrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(usaJobsAPIKeyEnv); v != "" {
		c.Ingestion.USAJobsAPIKey = v
	}

	if v := os.Getenv(usaJobsUAEnv); v != "" {
		c.Ingestion.USAJobsAgent = v
	}

	if v := os.Getenv(adminJWTSecretEnv); v != "" {
		c.Auth.JWTSecret = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Scheduler.Interval != 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Ingestion.Pacing != 0 {
		base.Ingestion.Pacing = override.Ingestion.Pacing
	}
	if override.Ingestion.UserAgent != "" {
		base.Ingestion.UserAgent = override.Ingestion.UserAgent
	}
	if override.Ingestion.USAJobsAPIKey != "" {
		base.Ingestion.USAJobsAPIKey = override.Ingestion.USAJobsAPIKey
	}
	if override.Ingestion.USAJobsAgent != "" {
		base.Ingestion.USAJobsAgent = override.Ingestion.USAJobsAgent
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}

	if override.Auth.JWTSecret != "" {
		base.Auth.JWTSecret = override.Auth.JWTSecret
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Server:    ServerConfig{Addr: defaultAddr},
		Database:  DatabaseConfig{Driver: DriverSQLite, DSN: filepath.Join(xdg.DataHome, "cdoportal", "portal.db")},
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{Interval: defaultInterval, Timezone: defaultTimezone, location: tz},
		Ingestion: IngestionConfig{Pacing: defaultPacing, UserAgent: defaultUserAgent, USAJobsAgent: "Mozilla/5.0 (compatible; CDOPortal/1.0)"},
		Sources:   defaultSources(),
		ChatGPT: ChatGPTConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
	}
}

func defaultSources() []SourceConfig {
	sources := []SourceConfig{
		{Kind: "news", Name: "FedScoop", Scanner: "rss", URL: "https://fedscoop.com/feed/", Category: "technology", Limit: defaultNewsLimit},
		{Kind: "news", Name: "GovExec", Scanner: "rss", URL: "https://www.govexec.com/rss/technology/", Category: "technology", Limit: defaultNewsLimit},
		{Kind: "news", Name: "MeriTalk", Scanner: "rss", URL: "https://www.meritalk.com/feed/", Category: "technology", Limit: defaultNewsLimit},
		{
			Kind: "policy", Name: "Federal Register", Scanner: "rss", Category: "laws_regulations", Limit: defaultPolicyLimit,
			URL: "https://www.federalregister.gov/api/v1/documents.rss?conditions%5Bterm%5D=artificial+intelligence",
		},
		{Kind: "policy", Name: "NIST", Scanner: "rss", URL: "https://www.nist.gov/news-events/news/rss.xml", Category: "standards_practices", Limit: defaultPolicyLimit},
	}

	for _, kw := range []string{
		"data scientist",
		"data analyst",
		"chief data officer",
		"machine learning engineer",
		"artificial intelligence",
	} {
		sources = append(sources, SourceConfig{
			Kind:    "jobs",
			Name:    "USAJOBS: " + kw,
			Source:  "USAJOBS",
			Scanner: "usajobs",
			URL:     "https://data.usajobs.gov/api/search",
			Limit:   defaultJobsLimit,
			Options: map[string]string{"keyword": kw},
		})
	}
	return sources
}
