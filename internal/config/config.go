package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	VKToken      string `mapstructure:"VK_TOKEN"`
	VKAppID      string `mapstructure:"VK_APP_ID"`
	VKAPIBaseURL string `mapstructure:"VK_API_BASE_URL"`
	VKAPIVersion string `mapstructure:"VK_API_VERSION"`

	HttpTimeoutSec int    `mapstructure:"HTTP_TIMEOUT_SEC"`
	ProxyURL       string `mapstructure:"PROXY_URL"`

	DataDir        string `mapstructure:"DATA_DIR"`
	SaveDataOption string `mapstructure:"SAVE_DATA_OPTION"`
	CSVDelimiter   string `mapstructure:"CSV_DELIMITER"`

	StoreBackend string `mapstructure:"STORE_BACKEND"`
	SQLitePath   string `mapstructure:"SQLITE_PATH"`
	MySQLDSN     string `mapstructure:"MYSQL_DSN"`
	PostgresDSN  string `mapstructure:"POSTGRES_DSN"`
	MongoURI     string `mapstructure:"MONGO_URI"`
	MongoDB      string `mapstructure:"MONGO_DB"`

	CacheBackend       string `mapstructure:"CACHE_BACKEND"`
	CacheDefaultTTLSec int    `mapstructure:"CACHE_DEFAULT_TTL_SEC"`
	RedisAddr          string `mapstructure:"REDIS_ADDR"`
	RedisPassword      string `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int    `mapstructure:"REDIS_DB"`
	RedisKeyPrefix     string `mapstructure:"REDIS_KEY_PREFIX"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	APIAddr   string `mapstructure:"API_ADDR"`
}

var AppConfig Config

// LoadConfig reads .env files, config.yaml under path and the environment, in
// increasing priority. A missing .env or config.yaml is not an error.
func LoadConfig(path string) error {
	loadDotEnv(path)

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("VK_TOKEN", "")
	viper.SetDefault("VK_APP_ID", "")
	viper.SetDefault("VK_API_BASE_URL", "https://api.vk.com")
	viper.SetDefault("VK_API_VERSION", "5.199")
	viper.SetDefault("HTTP_TIMEOUT_SEC", 60)
	viper.SetDefault("PROXY_URL", "")
	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("SAVE_DATA_OPTION", "json")
	viper.SetDefault("CSV_DELIMITER", ";")
	viper.SetDefault("STORE_BACKEND", "file")
	viper.SetDefault("SQLITE_PATH", "data/vk_comments.db")
	viper.SetDefault("MYSQL_DSN", "")
	viper.SetDefault("POSTGRES_DSN", "")
	viper.SetDefault("MONGO_URI", "")
	viper.SetDefault("MONGO_DB", "vk_comments")
	viper.SetDefault("CACHE_BACKEND", "none")
	viper.SetDefault("CACHE_DEFAULT_TTL_SEC", 600)
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_KEY_PREFIX", "vk_comments:")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("API_ADDR", ":8080")

	viper.SetEnvPrefix("VK_EXPORTER")
	viper.AutomaticEnv()
	// The token is conventionally exported without the prefix.
	if err := viper.BindEnv("VK_TOKEN", "VK_EXPORTER_VK_TOKEN", "VK_TOKEN"); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return err
	}
	Normalize(&AppConfig)
	return nil
}

func loadDotEnv(path string) {
	candidates := []string{".env"}
	if p := strings.TrimSpace(path); p != "" && p != "." {
		candidates = append(candidates, filepath.Join(p, ".env"))
	}
	for _, f := range candidates {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// godotenv.Load never overrides variables that are already set.
		_ = godotenv.Load(f)
	}
}

func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.VKToken = strings.TrimSpace(cfg.VKToken)
	cfg.SaveDataOption = strings.ToLower(strings.TrimSpace(cfg.SaveDataOption))
	if cfg.SaveDataOption == "excel" {
		cfg.SaveDataOption = "xlsx"
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	cfg.VKAPIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.VKAPIBaseURL), "/")
	if cfg.CSVDelimiter == "" {
		cfg.CSVDelimiter = ";"
	}
}
