package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

var ErrInvalid = errors.New("invalid configuration")

const envPrefix = "TOXREF"

type SourceConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type ConvertConfig struct {
	SchemaName               string   `yaml:"schema_name"`
	OutputPath               string   `yaml:"output_path"`
	BatchSize                int      `yaml:"batch_size"`
	IncludeMaterializedViews bool     `yaml:"include_materialized_views"`
	Tables                   []string `yaml:"tables"`
	Exclude                  []string `yaml:"exclude"`
	Backup                   bool     `yaml:"backup"`
	MaxBackups               int      `yaml:"max_backups"`
}

type DownloadConfig struct {
	ListingURL string `yaml:"listing_url"`
	FilesURL   string `yaml:"files_url"`
	Pattern    string `yaml:"pattern"`
	OutputPath string `yaml:"output_path"`
	ChunkSize  int    `yaml:"chunk_size"`
	APIKey     string `yaml:"api_key"`
	Progress   bool   `yaml:"progress"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Convert  ConvertConfig  `yaml:"convert"`
	Download DownloadConfig `yaml:"download"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the settings the ToxRefDB brick is built with.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			Database: "toxrefdb",
			User:     "postgres",
			Password: "password",
			SSLMode:  "disable",
		},
		Convert: ConvertConfig{
			SchemaName:               "prod_toxrefdb_3_0",
			OutputPath:               filepath.Join("brick", "toxrefdb.sqlite"),
			BatchSize:                1000,
			IncludeMaterializedViews: true,
			Backup:                   true,
			MaxBackups:               5,
		},
		Download: DownloadConfig{
			ListingURL: "https://clowder.edap-cluster.com/api/datasets/61147fefe4b0856fdc65639b/files",
			FilesURL:   "https://clowder.edap-cluster.com/api/files",
			Pattern:    `toxrefdb.*\.dump`,
			OutputPath: filepath.Join("download", "toxrefdb.dump"),
			ChunkSize:  8192,
			Progress:   true,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// GetConnectionString builds the DSN for the configured source driver.
func (db *SourceConfig) GetConnectionString() string {
	if db.Driver == "mysql" {
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			db.User,
			db.Password,
			db.Host,
			db.Port,
			db.Database,
		)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host,
		db.Port,
		db.User,
		db.Password,
		db.Database,
		db.SSLMode,
	)
}

// LoadConfig reads path over the defaults, then applies TOXREF_* environment
// overrides (a .env file in the working directory is loaded first if present).
// A missing file at path is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	setString("SOURCE_DRIVER", &cfg.Source.Driver)
	setString("SOURCE_HOST", &cfg.Source.Host)
	setInt("SOURCE_PORT", &cfg.Source.Port)
	setString("SOURCE_DATABASE", &cfg.Source.Database)
	setString("SOURCE_USER", &cfg.Source.User)
	setString("SOURCE_PASSWORD", &cfg.Source.Password)
	setString("SOURCE_SSLMODE", &cfg.Source.SSLMode)

	setString("SCHEMA_NAME", &cfg.Convert.SchemaName)
	setString("OUTPUT_PATH", &cfg.Convert.OutputPath)
	setInt("BATCH_SIZE", &cfg.Convert.BatchSize)
	setBool("BACKUP", &cfg.Convert.Backup)

	setString("DOWNLOAD_API_KEY", &cfg.Download.APIKey)
	setString("DOWNLOAD_OUTPUT_PATH", &cfg.Download.OutputPath)

	setString("LOG_LEVEL", &cfg.Log.Level)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	var problems []string
	if c.Source.Host == "" {
		problems = append(problems, "source.host is empty")
	}
	if c.Source.Port <= 0 {
		problems = append(problems, "source.port must be positive")
	}
	switch c.Source.Driver {
	case "postgres", "pgx", "mysql":
	default:
		problems = append(problems, fmt.Sprintf("source.driver %q is not one of postgres, pgx, mysql", c.Source.Driver))
	}
	if c.Convert.SchemaName == "" {
		problems = append(problems, "convert.schema_name is empty")
	}
	if c.Convert.OutputPath == "" {
		problems = append(problems, "convert.output_path is empty")
	}
	if c.Convert.BatchSize <= 0 {
		problems = append(problems, "convert.batch_size must be positive")
	}
	if c.Download.ChunkSize <= 0 {
		problems = append(problems, "download.chunk_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func GetDefaultConfigPath() string {
	dir, _ := os.Getwd()
	return filepath.Join(dir, "config.yaml")
}
