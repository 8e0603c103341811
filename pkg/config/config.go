package config

// Package config provides a reusable loader for the engine's configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/orbas1/radixgo/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for one engine instance. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Network struct {
		ID         string `mapstructure:"id" json:"id"`
		HRPPrefix  string `mapstructure:"hrp_prefix" json:"hrp_prefix"`
		GenesisFile string `mapstructure:"genesis_file" json:"genesis_file"`
	} `mapstructure:"network" json:"network"`

	Fee struct {
		SystemLoan     uint64 `mapstructure:"system_loan" json:"system_loan"`
		ExecutionLimit uint64 `mapstructure:"execution_limit" json:"execution_limit"`
		TipBasisPoints uint32 `mapstructure:"tip_basis_points" json:"tip_basis_points"`
	} `mapstructure:"fee" json:"fee"`

	Sandbox struct {
		MaxMemoryPages        uint32  `mapstructure:"max_memory_pages" json:"max_memory_pages"`
		InstantiationRPS      float64 `mapstructure:"instantiation_rps" json:"instantiation_rps"`
		InstantiationBurst    int     `mapstructure:"instantiation_burst" json:"instantiation_burst"`
	} `mapstructure:"sandbox" json:"sandbox"`

	Store struct {
		Backend string `mapstructure:"backend" json:"backend"` // "mem" or "bolt"
		DBPath  string `mapstructure:"db_path" json:"db_path"`
		Digest  string `mapstructure:"digest" json:"digest"` // "sha256" or "keccak256"
	} `mapstructure:"store" json:"store"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the RADIXGO_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("RADIXGO_ENV", ""))
}
