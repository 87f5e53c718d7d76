package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "LUMEN"

func DefaultConfig() *Config {

	v := viper.New()

	// Set default values
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("error unmarshaling default config: %v", err)
	}

	config.logger = newEventLogger(defaultEventBufferSize)

	return &config
}

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	if err := setupViperConfig(v, configFile); err != nil {
		return nil, err
	}

	bindEnvironmentVariables(v)

	config, err := readAndUnmarshalConfig(v)
	if err != nil {
		return nil, err
	}

	if err := setupLogging(config, v); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnvFile loads the .env file if it exists
func loadEnvFile() error {
	if err := gotenv.Load(); err != nil {
		// .env file not found, that's okay - continue with other sources
		if !os.IsNotExist(err) {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}
	return nil
}

// setupViperConfig configures viper with file paths and defaults
func setupViperConfig(v *viper.Viper, configFile string) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lumen")

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)
	}

	setupHomeConfigPath(v)

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	return nil
}

// setupHomeConfigPath adds ~/.config/lumen when a home directory exists
func setupHomeConfigPath(v *viper.Viper) {
	if len(os.Getenv("HOME")) == 0 {
		return
	}

	usr, err := user.Current()
	if err != nil {
		logrus.WithError(err).Warnln("Failed to get current user, skipping home config path")
		return
	}

	v.AddConfigPath(filepath.Join(usr.HomeDir, ".config", "lumen"))
}

// bindEnvironmentVariables binds all environment variables to viper
func bindEnvironmentVariables(v *viper.Viper) {

	v.BindEnv("environment", "LUMEN_ENVIRONMENT")
	v.BindEnv("strategy", "LUMEN_STRATEGY")

	// Backends
	v.BindEnv("auth.url", "LUMEN_AUTH_API_URL", "LUMEN_AUTH_URL")
	v.BindEnv("auth.timeout", "LUMEN_AUTH_TIMEOUT")
	v.BindEnv("api.url", "LUMEN_API_URL")
	v.BindEnv("api.timeout", "LUMEN_API_TIMEOUT")

	v.BindEnv("session.refresh_timeout", "LUMEN_SESSION_REFRESH_TIMEOUT")

	bindEndpointEnvVars(v)
	bindStorageEnvVars(v)
	bindLoggingEnvVars(v)

	v.BindEnv("metrics.enabled", "LUMEN_METRICS_ENABLED")
	v.BindEnv("metrics.address", "LUMEN_METRICS_ADDRESS")
}

// bindEndpointEnvVars binds the auth backend paths
func bindEndpointEnvVars(v *viper.Viper) {
	v.BindEnv("auth.endpoints.login", "LUMEN_AUTH_ENDPOINTS_LOGIN")
	v.BindEnv("auth.endpoints.identity", "LUMEN_AUTH_ENDPOINTS_IDENTITY")
	v.BindEnv("auth.endpoints.refresh", "LUMEN_AUTH_ENDPOINTS_REFRESH")
	v.BindEnv("auth.endpoints.logout", "LUMEN_AUTH_ENDPOINTS_LOGOUT")
	v.BindEnv("auth.endpoints.register", "LUMEN_AUTH_ENDPOINTS_REGISTER")
}

// bindStorageEnvVars binds credential storage settings
func bindStorageEnvVars(v *viper.Viper) {
	v.BindEnv("storage.backend", "LUMEN_STORAGE_BACKEND")
	v.BindEnv("storage.path", "LUMEN_STORAGE_PATH")
	v.BindEnv("storage.redis.address", "LUMEN_STORAGE_REDIS_ADDRESS", "REDIS_URL")
	v.BindEnv("storage.redis.username", "LUMEN_STORAGE_REDIS_USERNAME")
	v.BindEnv("storage.redis.password", "LUMEN_STORAGE_REDIS_PASSWORD")
	v.BindEnv("storage.redis.db", "LUMEN_STORAGE_REDIS_DB")
	v.BindEnv("storage.redis.prefix", "LUMEN_STORAGE_REDIS_PREFIX")
}

// bindLoggingEnvVars binds logging configuration environment variables
func bindLoggingEnvVars(v *viper.Viper) {
	v.BindEnv("logging.level", "LUMEN_LOGGING_LEVEL")
	v.BindEnv("logging.format", "LUMEN_LOGGING_FORMAT")
	v.BindEnv("logging.output", "LUMEN_LOGGING_OUTPUT")
}

// readAndUnmarshalConfig reads the configuration file and unmarshals it
func readAndUnmarshalConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setupLogging configures the logging system based on the config
func setupLogging(config *Config, v *viper.Viper) error {
	logrusLevel, err := logrus.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}

	logrus.SetLevel(logrusLevel)
	config.logger = newEventLogger(defaultEventBufferSize)
	logrus.AddHook(config.logger)

	switch strings.ToLower(config.Logging.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		logrus.WithFields(logrus.Fields{
			"format": config.Logging.Format,
		}).Warn("Unknown log format")
	}

	output, err := logOutput(config.Logging.Output)
	if err != nil {
		return err
	}
	logrus.SetOutput(output)

	// Dump out the config settings if in debug mode
	if logrusLevel >= logrus.DebugLevel {
		for key, value := range v.AllSettings() {
			if key == "storage" {
				// May hold redis credentials
				continue
			}
			logrus.Debugf("Config '%s': %v\n", key, value)
		}
	}

	return nil
}

func logOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output: %w", err)
		}
		return file, nil
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {

	v.SetDefault("environment", "development")

	// Auth backend defaults
	v.SetDefault("auth.url", "http://localhost:8000/api")
	v.SetDefault("auth.timeout", "30s")
	v.SetDefault("auth.endpoints.login", "/token/")
	v.SetDefault("auth.endpoints.identity", "/whoami/")
	v.SetDefault("auth.endpoints.refresh", "/token-refresh/")
	v.SetDefault("auth.endpoints.logout", "/logout/")
	v.SetDefault("auth.endpoints.register", "/users/")

	// Protected API defaults to the auth backend
	v.SetDefault("api.url", "")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("session.refresh_timeout", "10s")

	// Credential storage defaults
	v.SetDefault("storage.backend", string(StorageFile))
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.redis.address", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "lumen")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9464")
	v.SetDefault("metrics.path", "/metrics")
}
