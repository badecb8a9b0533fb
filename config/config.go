package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 環境變數前綴，例如 SWPM_BRIDGE_DATABASE_DSN
const EnvPrefix = "SWPM_BRIDGE"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Site     SiteConfig     `mapstructure:"site"`
	Settings Settings       `mapstructure:"settings"`
}

type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	GinMode string `mapstructure:"gin_mode"`
}

type DatabaseConfig struct {
	DSN           string        `mapstructure:"dsn"`
	TablePrefix   string        `mapstructure:"table_prefix"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
	Path   string `mapstructure:"path"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type SiteConfig struct {
	Name     string `mapstructure:"name"`
	LoginURL string `mapstructure:"login_url"`
}

// Settings 整合的全域設定（對應外掛設定頁）
type Settings struct {
	Enabled                bool   `mapstructure:"enabled"`
	DefaultMembershipLevel string `mapstructure:"default_membership_level"`
	LogLevel               string `mapstructure:"log_level"`
	LogRetentionDays       int    `mapstructure:"log_retention_days"`
	AutoCreateWPUser       bool   `mapstructure:"auto_create_wp_user"`
	SwpmLoginPageURL       string `mapstructure:"swpm_login_page_url"`
}

// DefaultSettings 回傳外掛啟用時寫入的預設設定
func DefaultSettings() Settings {
	return Settings{
		Enabled:          true,
		LogLevel:         "error",
		LogRetentionDays: 30,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table_prefix", "wp_")
	v.SetDefault("database.max_retries", 5)
	v.SetDefault("database.retry_interval", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.path", "./logs/bridge.log")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.session_ttl", 14*24*time.Hour)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("site.name", "WordPress")
	v.SetDefault("site.login_url", "/wp-login.php")

	d := DefaultSettings()
	v.SetDefault("settings.enabled", d.Enabled)
	v.SetDefault("settings.default_membership_level", d.DefaultMembershipLevel)
	v.SetDefault("settings.log_level", d.LogLevel)
	v.SetDefault("settings.log_retention_days", d.LogRetentionDays)
	v.SetDefault("settings.auto_create_wp_user", d.AutoCreateWPUser)
	v.SetDefault("settings.swpm_login_page_url", d.SwpmLoginPageURL)
}

// Load 載入 .env、設定檔與環境變數，後者優先
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables only: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Settings.LogRetentionDays <= 0 {
		cfg.Settings.LogRetentionDays = DefaultSettings().LogRetentionDays
	}

	return &cfg, nil
}

// Validate 檢查啟動服務所需的設定
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.JWT.SessionTTL <= 0 {
		errs = append(errs, errors.New("jwt.session_ttl must be positive"))
	}
	return errors.Join(errs...)
}

// LoginURL 會員系統登入頁優先於站台登入頁
func (c *Config) LoginURL() string {
	if c.Settings.SwpmLoginPageURL != "" {
		return c.Settings.SwpmLoginPageURL
	}
	return c.Site.LoginURL
}
