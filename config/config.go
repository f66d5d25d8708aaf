package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the monchat services.
type Config struct {
	General   GeneralConfig    `mapstructure:"general"`
	Server    ServerConfig     `mapstructure:"server"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Oracle    OracleConfig     `mapstructure:"oracle"`
	MockDB    MockDBConfig     `mapstructure:"mockdb"`
	Logs      LogSourcesConfig `mapstructure:"logs"`
	ETL       ETLConfig        `mapstructure:"etl"`
	Embedding EmbeddingConfig  `mapstructure:"embedding"`
	LLM       LLMConfig        `mapstructure:"llm"`
}

// GeneralConfig contains application-wide settings.
type GeneralConfig struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"env"`
	Debug          bool   `mapstructure:"debug"`
	FrontendOrigin string `mapstructure:"frontend_origin"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// StorageConfig groups backing stores.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig describes the pgvector document store. Enabled gates the
// whole vector tier: when false the ETL dry-runs and retrieval serves the
// keyword fallback only.
type PostgresConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	EmbeddingDim int    `mapstructure:"embedding_dim"`
}

// DSN assembles a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
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

func (p PostgresConfig) Validate() error {
	if p.Enabled && p.EmbeddingDim <= 0 {
		return fmt.Errorf("storage.postgres.embedding_dim must be > 0 when the vector store is enabled")
	}
	return nil
}

// RedisConfig is optional; when Addr is empty the ETL scheduler runs without
// a distributed lock.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OracleConfig describes the relational telemetry source, either a single
// endpoint or a RAC address list.
type OracleConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Mode        string   `mapstructure:"mode"` // SINGLE | RAC
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	ServiceName string   `mapstructure:"service_name"`
	User        string   `mapstructure:"user"`
	Password    string   `mapstructure:"password"`
	RACHosts    []string `mapstructure:"rac_hosts"`
	RACPort     int      `mapstructure:"rac_port"`
	Protocol    string   `mapstructure:"protocol"`
	LoadBalance bool     `mapstructure:"load_balance"`
	Failover    bool     `mapstructure:"failover"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// Recorded for operators; address-list failover handles retries at the
	// connection level, the collectors do not loop on these.
	RetryCount int           `mapstructure:"retry_count"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

func (o OracleConfig) Validate() error {
	switch strings.ToUpper(o.Mode) {
	case "", "SINGLE":
	case "RAC":
		if o.Enabled && len(o.RACHosts) == 0 {
			return fmt.Errorf("oracle.rac_hosts required in RAC mode")
		}
	default:
		return fmt.Errorf("oracle.mode must be SINGLE or RAC, got %q", o.Mode)
	}
	return nil
}

// MockDBConfig enables the CSV export source. When enabled it takes
// precedence over the oracle collectors.
type MockDBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LogSourcesConfig toggles the flat-file log sources.
type LogSourcesConfig struct {
	WASEnabled bool   `mapstructure:"was_enabled"`
	WASDir     string `mapstructure:"was_dir"`
	DBEnabled  bool   `mapstructure:"db_enabled"`
	DBDir      string `mapstructure:"db_dir"`
}

// ETLConfig drives the ingestion window and scheduler.
type ETLConfig struct {
	Days             int    `mapstructure:"days"`
	DryRunDir        string `mapstructure:"dry_run_dir"`
	SchedulerEnabled bool   `mapstructure:"scheduler_enabled"`
	Cron             string `mapstructure:"cron"`
}

// EmbeddingConfig points at the external embedding service.
type EmbeddingConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Path      string        `mapstructure:"path"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BatchSize int           `mapstructure:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Device    string        `mapstructure:"device"` // auto | cpu | cuda; forwarded to the provider
}

// LLMConfig points at the upstream chat proxy.
type LLMConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	ChatPath     string        `mapstructure:"chat_path"`
	DefaultModel string        `mapstructure:"default_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Stream       bool          `mapstructure:"stream"`
}

// LoadConfig loads config from file, with MONCHAT_* environment overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.app_name", "monchat")
	viper.SetDefault("general.env", "dev")
	viper.SetDefault("general.frontend_origin", "http://localhost:8501")
	viper.SetDefault("server.address", ":8000")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.postgres.embedding_dim", 768)
	viper.SetDefault("oracle.mode", "SINGLE")
	viper.SetDefault("oracle.port", 1521)
	viper.SetDefault("oracle.rac_port", 1521)
	viper.SetDefault("oracle.protocol", "TCP")
	viper.SetDefault("oracle.load_balance", true)
	viper.SetDefault("oracle.failover", true)
	viper.SetDefault("oracle.connect_timeout", 5*time.Second)
	viper.SetDefault("oracle.retry_count", 3)
	viper.SetDefault("oracle.retry_delay", time.Second)
	viper.SetDefault("mockdb.dir", "mock_data")
	viper.SetDefault("logs.was_dir", "/swlog/was")
	viper.SetDefault("logs.db_dir", "/swlog/db")
	viper.SetDefault("etl.days", 7)
	viper.SetDefault("etl.dry_run_dir", "etl_out")
	viper.SetDefault("etl.cron", "0 3 * * *")
	viper.SetDefault("embedding.path", "/v1/embeddings")
	viper.SetDefault("embedding.batch_size", 16)
	viper.SetDefault("embedding.timeout", 30*time.Second)
	viper.SetDefault("embedding.device", "auto")
	viper.SetDefault("llm.chat_path", "/api/chat")
	viper.SetDefault("llm.timeout", 60*time.Second)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("MONCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus MONCHAT_* env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Oracle.Validate(); err != nil {
		panic(err)
	}
	return &config
}
