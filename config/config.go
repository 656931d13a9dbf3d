package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_PORT           = "5000"
	DEFAULT_MODEL_PATH     = "model.json"
	DEFAULT_VECTORIZER     = "vectorizer.json"
	DEFAULT_MAX_BODY_BYTES = 10 << 20
	DEFAULT_RECENT_LIMIT   = 100
)

// Config is the runtime configuration of the service and the CLI.
type Config struct {
	Port               string   `toml:"port" yaml:"port" validate:"required,numeric"`
	ModelPath          string   `toml:"model_path" yaml:"model_path" validate:"required"`
	VectorizerPath     string   `toml:"vectorizer_path" yaml:"vectorizer_path" validate:"required"`
	MaxBodyBytes       int64    `toml:"max_body_bytes" yaml:"max_body_bytes" validate:"gt=0"`
	MaxBatchSize       int      `toml:"max_batch_size" yaml:"max_batch_size" validate:"gte=0"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins" yaml:"cors_allowed_origins" validate:"dive,required"`
	LogLevel           string   `toml:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat          string   `toml:"log_format" yaml:"log_format" validate:"oneof=text json"`

	Recording RecordingConfig `toml:"recording" yaml:"recording"`
}

// RecordingConfig enables the optional analysis recorders. Every recorder is
// off unless its address or flag is set.
type RecordingConfig struct {
	SQLitePath string `toml:"sqlite_path" yaml:"sqlite_path"`

	DynamoDB         bool   `toml:"dynamodb" yaml:"dynamodb"`
	AWSEndpoint      string `toml:"aws_endpoint" yaml:"aws_endpoint" validate:"omitempty,url"`
	AWSRegion        string `toml:"aws_region" yaml:"aws_region" validate:"required_if=DynamoDB true"`
	AnalysesTable    string `toml:"analyses_table" yaml:"analyses_table" validate:"required_if=DynamoDB true"`
	PredictionsTable string `toml:"predictions_table" yaml:"predictions_table" validate:"required_if=DynamoDB true"`

	KafkaBroker string `toml:"kafka_broker" yaml:"kafka_broker"`
	KafkaTopic  string `toml:"kafka_topic" yaml:"kafka_topic" validate:"required_with=KafkaBroker"`

	ValkeyAddress     string `toml:"valkey_address" yaml:"valkey_address"`
	ValkeyPassword    string `toml:"valkey_password" yaml:"valkey_password"`
	ValkeyTLS         bool   `toml:"valkey_tls" yaml:"valkey_tls"`
	ValkeyRecentLimit int64  `toml:"valkey_recent_limit" yaml:"valkey_recent_limit" validate:"gt=0"`
}

func Default() *Config {
	return &Config{
		Port:               DEFAULT_PORT,
		ModelPath:          DEFAULT_MODEL_PATH,
		VectorizerPath:     DEFAULT_VECTORIZER,
		MaxBodyBytes:       DEFAULT_MAX_BODY_BYTES,
		CORSAllowedOrigins: []string{"*"},
		LogLevel:           "info",
		LogFormat:          "text",
		Recording: RecordingConfig{
			AWSRegion:         "us-west-2",
			AnalysesTable:     "ReviewAnalyses",
			PredictionsTable:  "ReviewPredictions",
			KafkaTopic:        "review-analyses",
			ValkeyRecentLimit: DEFAULT_RECENT_LIMIT,
		},
	}
}

// Load builds the configuration from defaults, then the optional file at
// path (TOML or YAML by extension), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return ":" + c.Port
}

func loadFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.ModelPath, "MODEL_PATH")
	setString(&cfg.VectorizerPath, "VECTORIZER_PATH")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if raw, ok := lookup("MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	}
	if raw, ok := lookup("MAX_BATCH_SIZE"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("MAX_BATCH_SIZE: %w", err)
		}
		cfg.MaxBatchSize = n
	}
	if raw, ok := lookup("CORS_ALLOWED_ORIGINS"); ok {
		cfg.CORSAllowedOrigins = splitList(raw)
	}

	rec := &cfg.Recording
	setString(&rec.SQLitePath, "RECORD_SQLITE_PATH")
	setBool(&rec.DynamoDB, "RECORD_DYNAMODB")
	setString(&rec.AWSEndpoint, "AWS_ENDPOINT")
	setString(&rec.AWSRegion, "AWS_REGION")
	setString(&rec.AnalysesTable, "DYNAMODB_ANALYSES_TABLE")
	setString(&rec.PredictionsTable, "DYNAMODB_PREDICTIONS_TABLE")
	setString(&rec.KafkaBroker, "KAFKA_BROKER")
	setString(&rec.KafkaTopic, "KAFKA_TOPIC_ANALYSES")
	setString(&rec.ValkeyAddress, "VALKEY_INIT_ADDRESS")
	setString(&rec.ValkeyPassword, "VALKEY_PASSWORD")
	setBool(&rec.ValkeyTLS, "VALKEY_TLS")
	if raw, ok := lookup("VALKEY_RECENT_LIMIT"); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("VALKEY_RECENT_LIMIT: %w", err)
		}
		rec.ValkeyRecentLimit = n
	}
	return nil
}

// lookup returns the trimmed value of key, ignoring variables that are set
// but blank.
func lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func setString(dst *string, key string) {
	if value, ok := lookup(key); ok {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value, ok := lookup(key); ok {
		*dst = value == "1" || strings.EqualFold(value, "true")
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
