package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the MiniOS shell
type Config struct {
	// Application configuration
	App AppConfig `json:"app" yaml:"app"`

	// Credential store configuration
	Credentials CredentialsConfig `json:"credentials" yaml:"credentials"`

	// Process supervisor configuration
	Process ProcessConfig `json:"process" yaml:"process"`

	// History configuration
	History HistoryConfig `json:"history" yaml:"history"`

	// Audit journal configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name       string `json:"name" yaml:"name"`
	Version    string `json:"version" yaml:"version"`
	Debug      bool   `json:"debug" yaml:"debug"`
	Banner     bool   `json:"banner" yaml:"banner"`
	WorkingDir string `json:"working_dir" yaml:"working_dir"`
}

// CredentialsConfig holds credential store configuration
type CredentialsConfig struct {
	UsersFile    string `json:"users_file" yaml:"users_file"`
	HashSecrets  bool   `json:"hash_secrets" yaml:"hash_secrets"`
	ShowUsers    bool   `json:"show_users" yaml:"show_users"`
	FileMode     uint32 `json:"file_mode" yaml:"file_mode"`
	BcryptRounds int    `json:"bcrypt_rounds" yaml:"bcrypt_rounds"`
}

// ProcessConfig holds process supervisor configuration
type ProcessConfig struct {
	Interpreter     string   `json:"interpreter" yaml:"interpreter"`
	InterpreterArgs []string `json:"interpreter_args" yaml:"interpreter_args"`
	MaxProcesses    int      `json:"max_processes" yaml:"max_processes"`
	PurgeExited     bool     `json:"purge_exited" yaml:"purge_exited"`
	UseProcessGroup bool     `json:"use_process_group" yaml:"use_process_group"`
	KillOnExit      bool     `json:"kill_on_exit" yaml:"kill_on_exit"`
}

// HistoryConfig holds command history configuration
type HistoryConfig struct {
	// Journal mirrors every history entry into the audit database when enabled
	Journal bool `json:"journal" yaml:"journal"`
}

// DatabaseConfig holds audit journal configuration
type DatabaseConfig struct {
	Enable  bool   `json:"enable" yaml:"enable"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "json" or "text"
	Output string `json:"output" yaml:"output"` // "stderr", "stdout", "file", or file path
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:       "minios",
			Version:    "1.0.0",
			Debug:      false,
			Banner:     true,
			WorkingDir: "", // Use current directory
		},
		Credentials: CredentialsConfig{
			UsersFile:    "users.json",
			HashSecrets:  false,
			ShowUsers:    true,
			FileMode:     0o644,
			BcryptRounds: 10,
		},
		Process: ProcessConfig{
			Interpreter:     "python3",
			InterpreterArgs: []string{},
			MaxProcesses:    0, // Unlimited
			PurgeExited:     false,
			UseProcessGroup: true,
			KillOnExit:      false,
		},
		History: HistoryConfig{
			Journal: true,
		},
		Database: DatabaseConfig{
			Enable:  false,
			DataDir: ".minios",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "minios.log",
		},
	}
}

// LoadConfig loads configuration from an optional config file and environment variables
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a JSON (comments allowed) or YAML file
func loadFromFile(config *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		return json.Unmarshal(jsonc.ToJSON(data), config)
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *Config) {
	// Application configuration
	if val := os.Getenv("MINIOS_DEBUG"); val != "" {
		config.App.Debug = parseBool(val)
	}
	if val := os.Getenv("MINIOS_BANNER"); val != "" {
		config.App.Banner = parseBool(val)
	}
	if val := os.Getenv("MINIOS_WORKING_DIR"); val != "" {
		config.App.WorkingDir = val
	}

	// Credential configuration
	if val := os.Getenv("MINIOS_USERS_FILE"); val != "" {
		config.Credentials.UsersFile = val
	}
	if val := os.Getenv("MINIOS_HASH_SECRETS"); val != "" {
		config.Credentials.HashSecrets = parseBool(val)
	}
	if val := os.Getenv("MINIOS_SHOW_USERS"); val != "" {
		config.Credentials.ShowUsers = parseBool(val)
	}

	// Process configuration
	if val := os.Getenv("MINIOS_INTERPRETER"); val != "" {
		config.Process.Interpreter = val
	}
	if val := os.Getenv("MINIOS_MAX_PROCESSES"); val != "" {
		config.Process.MaxProcesses = parseInt(val, config.Process.MaxProcesses)
	}
	if val := os.Getenv("MINIOS_PURGE_EXITED"); val != "" {
		config.Process.PurgeExited = parseBool(val)
	}
	if val := os.Getenv("MINIOS_KILL_ON_EXIT"); val != "" {
		config.Process.KillOnExit = parseBool(val)
	}

	// Database configuration
	if val := os.Getenv("MINIOS_DATABASE_ENABLE"); val != "" {
		config.Database.Enable = parseBool(val)
	}
	if val := os.Getenv("MINIOS_DATA_DIR"); val != "" {
		config.Database.DataDir = val
	}

	// Logging configuration
	if val := os.Getenv("MINIOS_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("MINIOS_LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("MINIOS_LOG_OUTPUT"); val != "" {
		config.Logging.Output = val
	}
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if strings.TrimSpace(config.Credentials.UsersFile) == "" {
		return fmt.Errorf("users_file must not be empty")
	}

	if config.Credentials.FileMode == 0 {
		return fmt.Errorf("file_mode must not be 0")
	}

	if config.Credentials.HashSecrets && (config.Credentials.BcryptRounds < 4 || config.Credentials.BcryptRounds > 31) {
		return fmt.Errorf("bcrypt_rounds must be between 4 and 31")
	}

	if strings.TrimSpace(config.Process.Interpreter) == "" {
		return fmt.Errorf("interpreter must not be empty")
	}

	if config.Process.MaxProcesses < 0 {
		return fmt.Errorf("max_processes must not be negative")
	}

	if config.Database.Enable && strings.TrimSpace(config.Database.DataDir) == "" {
		return fmt.Errorf("data_dir is required when the database is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// Helper functions for parsing environment variables
func parseBool(s string) bool {
	val, _ := strconv.ParseBool(s)
	return val
}

func parseInt(s string, defaultVal int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultVal
}

// SaveToFile saves the current configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0o644)
}
