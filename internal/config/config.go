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

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	DB         DBConfig         `mapstructure:"db"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type ReconcilerConfig struct {
	Interval             time.Duration `mapstructure:"interval"`
	Concurrency          int           `mapstructure:"concurrency"`
	MaxTransientFailures int           `mapstructure:"maxTransientFailures"`
}

type GatewayConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	SettleDelay time.Duration `mapstructure:"settleDelay"`
	FailureRate float64       `mapstructure:"failureRate"`
}

// DBConfig configures the optional withdrawal journal. An empty DatabaseURL
// disables it.
type DBConfig struct {
	DatabaseURL        string        `mapstructure:"databaseURL"`
	MaxOpenConnection  int           `mapstructure:"maxOpenConnection"`
	MaxIdleConnection  int           `mapstructure:"maxIdleConnection"`
	ConnectionLifetime time.Duration `mapstructure:"connectionLifetime"`
}

type LoggerConfig struct {
	LoggerLevel string `mapstructure:"loggerLevel"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("reconciler.interval", time.Second)
	v.SetDefault("reconciler.concurrency", 8)
	v.SetDefault("reconciler.maxTransientFailures", 3)

	v.SetDefault("gateway.timeout", 2*time.Second)
	v.SetDefault("gateway.settleDelay", 3*time.Second)
	v.SetDefault("gateway.failureRate", 0.2)

	v.SetDefault("db.databaseURL", "")
	v.SetDefault("db.maxOpenConnection", 15)
	v.SetDefault("db.maxIdleConnection", 10)
	v.SetDefault("db.connectionLifetime", time.Hour)

	v.SetDefault("logger.loggerLevel", "info")
}

// Load reads .env (if present), then config.yaml, then the environment.
// RECONCILER_INTERVAL overrides reconciler.interval and so on.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./internal/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		log.Println("config file not found, using defaults")
	} else {
		log.Printf("using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Reconciler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("reconciler.interval must be positive, got %s", c.Reconciler.Interval))
	}
	if c.Reconciler.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("reconciler.concurrency must be at least 1, got %d", c.Reconciler.Concurrency))
	}
	if c.Reconciler.MaxTransientFailures < 1 {
		errs = append(errs, fmt.Errorf("reconciler.maxTransientFailures must be at least 1, got %d", c.Reconciler.MaxTransientFailures))
	}
	if c.Gateway.FailureRate < 0 || c.Gateway.FailureRate > 1 {
		errs = append(errs, fmt.Errorf("gateway.failureRate must be within [0, 1], got %v", c.Gateway.FailureRate))
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	return errors.Join(errs...)
}
