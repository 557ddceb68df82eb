package configs

import (
	"errors"

	"github.com/jbily/BANKS-MO/internal/logger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	DB struct {
		DSN string `mapstructure:"dsn"`
		// LockWaitMS bounds row-lock acquisition; past it an operation
		// aborts with a contention error instead of blocking.
		LockWaitMS int `mapstructure:"lock_wait_ms"`
	} `mapstructure:"db"`
	JWT struct {
		Secret   string `mapstructure:"secret"`
		TTLHours int    `mapstructure:"ttl_hours"`
	} `mapstructure:"jwt"`
	Ledger struct {
		// CountWithdrawalsAgainstLimits makes withdrawals consume the
		// daily/monthly transfer windows like transfers do.
		CountWithdrawalsAgainstLimits bool `mapstructure:"count_withdrawals_against_limits"`
	} `mapstructure:"ledger"`
	Seed struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"seed"`
}

var AppConfig Config

func LoadConfig() {
	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("db.lock_wait_ms", 3000)
	viper.SetDefault("jwt.ttl_hours", 24)

	viper.AutomaticEnv()

	var fileLookupError viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil {
		if errors.As(err, &fileLookupError) {
			logger.Log.Fatal("config file not found", zap.Error(err))
		}
		logger.Log.Fatal("failed to read config", zap.Error(err))
	}

	viper.Unmarshal(&AppConfig)
}
