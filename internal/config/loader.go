package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Security  SecurityConfig  `mapstructure:"security"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Retention RetentionConfig `mapstructure:"retention"`
	Features  FeaturesConfig  `mapstructure:"features"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	Path            string        `mapstructure:"path"` // sqlite file path
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

type AuthConfig struct {
	AdminAPIKey    string   `mapstructure:"admin_api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WorkspaceConfig struct {
	Root string `mapstructure:"root"`
	// Remote import caps; a runaway source tree must not fill the disk.
	MaxImportFileSize int64 `mapstructure:"max_import_file_size"`
	MaxImportTotal    int64 `mapstructure:"max_import_total"`
	MaxImportEntries  int   `mapstructure:"max_import_entries"`
}

type AnalysisConfig struct {
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
	EventBuffer  int           `mapstructure:"event_buffer"`
	Code         CodeConfig    `mapstructure:"code"`
	LLM          LLMConfig     `mapstructure:"llm"`
}

type CodeConfig struct {
	MaxFiles    int   `mapstructure:"max_files"`
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

type LLMConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxDigestBytes  int           `mapstructure:"max_digest_bytes"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	AnthropicModel  string        `mapstructure:"anthropic_model"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	OpenAIModel     string        `mapstructure:"openai_model"`
}

type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type FeaturesConfig struct {
	EnableLocks          bool   `mapstructure:"enable_locks"`
	RequestIDHeader      string `mapstructure:"request_id_header"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("CODELENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "workspace"
	}
	if cfg.Workspace.MaxImportFileSize == 0 {
		cfg.Workspace.MaxImportFileSize = 8 << 20 // 8 MiB
	}
	if cfg.Workspace.MaxImportTotal == 0 {
		cfg.Workspace.MaxImportTotal = 512 << 20 // 512 MiB
	}
	if cfg.Workspace.MaxImportEntries == 0 {
		cfg.Workspace.MaxImportEntries = 50000
	}
	if cfg.Analysis.StageTimeout == 0 {
		cfg.Analysis.StageTimeout = 2 * time.Minute
	}
	if cfg.Analysis.EventBuffer == 0 {
		cfg.Analysis.EventBuffer = 64
	}
	if cfg.Analysis.Code.MaxFiles == 0 {
		cfg.Analysis.Code.MaxFiles = 20000
	}
	if cfg.Analysis.Code.MaxFileSize == 0 {
		cfg.Analysis.Code.MaxFileSize = 2 << 20 // 2 MiB
	}
	if cfg.Analysis.LLM.Timeout == 0 {
		cfg.Analysis.LLM.Timeout = 90 * time.Second
	}
	if cfg.Analysis.LLM.MaxDigestBytes == 0 {
		cfg.Analysis.LLM.MaxDigestBytes = 24000
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = "17 3 * * *"
	}
	if cfg.Retention.MaxAge == 0 {
		cfg.Retention.MaxAge = 30 * 24 * time.Hour
	}
}
