package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// NewViper reads the configuration from the global viper instance.
func NewViper() (*Config, error) {
	cfg := &Config{
		LogLevel:       viper.GetString("log-level"),
		LogPackages:    viper.GetStringSlice("log-pkgs"),
		LogFile:        viper.GetString("log-file"),
		Nodes:          viper.GetInt("nodes"),
		Validators:     viper.GetInt("validators"),
		Epochs:         viper.GetInt("epochs"),
		ViewsPerEpoch:  viper.GetUint64("views-per-epoch"),
		Timeout:        viper.GetDuration("timeout"),
		Seed:           viper.GetInt64("seed"),
		LeaderRotation: viper.GetString("leader-rotation"),
		ViewTimeout:    viper.GetDuration("view-timeout"),
		TimeoutRate:    viper.GetFloat64("timeout-rate"),
		MaxExponent:    viper.GetInt("max-exponent"),
		CacheSize:      viper.GetInt("cache-size"),
		PeriodBound:    viper.GetUint64("period-bound"),
		MetricsAddr:    viper.GetString("metrics-addr"),
		FgprofPath:     viper.GetString("fgprof"),
	}
	for _, p := range viper.GetIntSlice("powers") {
		cfg.Powers = append(cfg.Powers, int64(p))
	}

	if cfg.Validators == 0 {
		cfg.Validators = cfg.Nodes
	}

	if cfg.FgprofPath != "" {
		var err error
		cfg.FgprofPath, err = filepath.Abs(cfg.FgprofPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %v", err)
		}
		err = os.MkdirAll(filepath.Dir(cfg.FgprofPath), 0o755)
		if err != nil {
			return nil, fmt.Errorf("failed to create output directory: %v", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
