package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hoteldex/hotel-admin/internal/errors"
)

type AppConfig struct {
	File     string          `json:"-"`
	Consul   *ConsulConfig   `json:"consul,omitempty"`
	Redis    *RedisConfig    `json:"redis,omitempty"`
	Database *DatabaseConfig `json:"database,omitempty"`
	Export   *ExportConfig   `json:"export,omitempty"`
}

type ConsulConfig struct {
	Id            string `json:"id"`
	Address       string `json:"address"`
	PublicAddress string `json:"publicAddress"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	URL string `json:"url"`
}

type ExportConfig struct {
	Workers        int           `json:"workers"`
	BatchSize      int           `json:"batchSize"`
	AsyncThreshold int64         `json:"asyncThreshold"`
	MaxRecords     int64         `json:"maxRecords"`
	Retention      time.Duration `json:"retention"`
	SweepSchedule  string        `json:"sweepSchedule"`
	ArtifactDir    string        `json:"artifactDir"`
}

func LoadConfig() (*AppConfig, error) {
	bindFlagsAndEnv()

	configFile := getConfigFilePath()
	if configFile != "" {
		if err := loadFromFile(configFile); err != nil {
			return nil, err
		}
	}

	cfg := buildAppConfig(configFile)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindFlagsAndEnv() {
	pflag.String("config_file", "", "Configuration file in JSON format")

	// database
	pflag.String("data_source", "", "Data source")

	// consul
	pflag.String("id", "", "Service id")
	pflag.String("consul", "", "Host to consul")
	pflag.String("http_addr", "", "Public HTTP address with port")

	// redis
	pflag.String("redis_addr", "localhost:6379", "Redis address")
	pflag.String("redis_password", "", "Redis password")
	pflag.Int("redis_db", 0, "Redis DB number")

	// export
	pflag.Int("workers", 5, "Number of concurrent export workers")
	pflag.Int("batch_size", 1000, "Rows fetched per streaming batch")
	pflag.Int64("async_threshold", 5000, "Estimated record count that routes an export to a background job")
	pflag.Int64("max_records", 100000, "Hard ceiling on exportable records")
	pflag.Duration("retention", 72*time.Hour, "How long completed artifacts stay downloadable")
	pflag.String("sweep_schedule", "@hourly", "Cron schedule of the artifact expiry sweep")
	pflag.String("artifact_dir", "/var/lib/hotel-admin/exports", "Directory holding export artifacts")

	pflag.Parse()

	_ = viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit mapping
	_ = viper.BindEnv("id", "CONSUL_ID")
	_ = viper.BindEnv("consul", "CONSUL_HOST")
	_ = viper.BindEnv("http_addr", "HTTP_ADDR")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis_db", "REDIS_DB")
	_ = viper.BindEnv("artifact_dir", "ARTIFACT_DIR")
}

func getConfigFilePath() string {
	file := viper.GetString("config_file")
	if file == "" {
		file = os.Getenv("HOTEL_ADMIN_CONFIG_FILE")
	}
	return file
}

func loadFromFile(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		return errors.New(fmt.Sprintf("could not load config file: %s", err.Error()))
	}
	return nil
}

func buildAppConfig(file string) *AppConfig {
	return &AppConfig{
		File:     file,
		Database: &DatabaseConfig{URL: viper.GetString("data_source")},
		Export: &ExportConfig{
			Workers:        viper.GetInt("workers"),
			BatchSize:      viper.GetInt("batch_size"),
			AsyncThreshold: viper.GetInt64("async_threshold"),
			MaxRecords:     viper.GetInt64("max_records"),
			Retention:      viper.GetDuration("retention"),
			SweepSchedule:  viper.GetString("sweep_schedule"),
			ArtifactDir:    viper.GetString("artifact_dir"),
		},
		Consul: &ConsulConfig{
			Id:            viper.GetString("id"),
			Address:       viper.GetString("consul"),
			PublicAddress: viper.GetString("http_addr"),
		},
		Redis: &RedisConfig{
			Addr:     viper.GetString("redis_addr"),
			Password: viper.GetString("redis_password"),
			DB:       viper.GetInt("redis_db"),
		},
	}
}

func validateConfig(cfg *AppConfig) error {
	if cfg.Database.URL == "" {
		return errors.New("Data source is required")
	}
	if cfg.Consul.Id == "" {
		return errors.New("Service id is required")
	}
	if cfg.Consul.Address == "" {
		return errors.New("Consul address is required")
	}
	if cfg.Consul.PublicAddress == "" {
		return errors.New("HTTP address is required")
	}
	if cfg.Redis.Addr == "" {
		return errors.New("Redis address is required")
	}
	if cfg.Export.ArtifactDir == "" {
		return errors.New("Artifact directory is required")
	}
	if cfg.Export.MaxRecords > 0 && cfg.Export.AsyncThreshold > cfg.Export.MaxRecords {
		return errors.New("Async threshold cannot exceed the record ceiling")
	}
	return nil
}
