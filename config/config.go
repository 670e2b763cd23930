/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package config loads the data director configuration from a YAML file,
// an optional .env file and DATADIRECTOR_* environment variables, in that order
// of increasing precedence.
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"github.com/joho/godotenv"
	goerrors "github.com/pixil98/go-errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Duration is a time.Duration written as a Go duration string ("30s", "5m").
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", value.Line, err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

type Config struct {
	Backend  string         `yaml:"backend"`
	File     FileConfig     `yaml:"file"`
	Redis    RedisConfig    `yaml:"redis"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	Director DirectorConfig `yaml:"director"`
	Log      LogConfig      `yaml:"log"`
}

type FileConfig struct {
	Root string `yaml:"root"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type DynamoDBConfig struct {
	Region    string `yaml:"region"`
	Table     string `yaml:"table"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Endpoint  string `yaml:"endpoint"`
}

type DirectorConfig struct {
	FlushInterval    Duration `yaml:"flushInterval"`
	NegativeCacheTTL Duration `yaml:"negativeCacheTTL"`
	SerializeBackend bool     `yaml:"serializeBackend"`
	ShutdownTimeout  Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used for anything the sources leave unset.
func Default() Config {
	return Config{
		Backend: BackendFile,
		File:    FileConfig{Root: "data"},
		Redis: RedisConfig{
			Address: "localhost:6379",
			Prefix:  "datadirector",
		},
		Director: DirectorConfig{
			FlushInterval:    Duration(30 * time.Second),
			NegativeCacheTTL: Duration(5 * time.Second),
			ShutdownTimeout:  Duration(30 * time.Second),
		},
		Log: LogConfig{Level: "info"},
	}
}

// env lists the environment overrides. Fields are strings so that an unset
// variable can be told apart from a zero value.
type env struct {
	Backend          string `config:"DATADIRECTOR_BACKEND"`
	FileRoot         string `config:"DATADIRECTOR_FILE_ROOT"`
	RedisAddress     string `config:"DATADIRECTOR_REDIS_ADDRESS"`
	RedisPassword    string `config:"DATADIRECTOR_REDIS_PASSWORD"`
	RedisDB          string `config:"DATADIRECTOR_REDIS_DB"`
	RedisPrefix      string `config:"DATADIRECTOR_REDIS_PREFIX"`
	DynamoRegion     string `config:"DATADIRECTOR_DYNAMODB_REGION"`
	DynamoTable      string `config:"DATADIRECTOR_DYNAMODB_TABLE"`
	DynamoAccessKey  string `config:"DATADIRECTOR_DYNAMODB_ACCESS_KEY"`
	DynamoSecretKey  string `config:"DATADIRECTOR_DYNAMODB_SECRET_KEY"`
	DynamoEndpoint   string `config:"DATADIRECTOR_DYNAMODB_ENDPOINT"`
	FlushInterval    string `config:"DATADIRECTOR_FLUSH_INTERVAL"`
	NegativeCacheTTL string `config:"DATADIRECTOR_NEGATIVE_CACHE_TTL"`
	SerializeBackend string `config:"DATADIRECTOR_SERIALIZE_BACKEND"`
	ShutdownTimeout  string `config:"DATADIRECTOR_SHUTDOWN_TIMEOUT"`
	LogLevel         string `config:"DATADIRECTOR_LOG_LEVEL"`
	LogPretty        string `config:"DATADIRECTOR_LOG_PRETTY"`
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty), .env in the working directory and the environment.
// The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("opening config: %w", err)
		}
		// Ignoring close error - file is read-only
		defer func() { _ = f.Close() }()

		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	var e env
	if err := jlconfig.FromEnv().To(&e); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	if err := e.apply(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (e env) apply(cfg *Config) error {
	el := goerrors.NewErrorList()

	setString(&cfg.Backend, e.Backend)
	setString(&cfg.File.Root, e.FileRoot)
	setString(&cfg.Redis.Address, e.RedisAddress)
	setString(&cfg.Redis.Password, e.RedisPassword)
	setString(&cfg.Redis.Prefix, e.RedisPrefix)
	setString(&cfg.DynamoDB.Region, e.DynamoRegion)
	setString(&cfg.DynamoDB.Table, e.DynamoTable)
	setString(&cfg.DynamoDB.AccessKey, e.DynamoAccessKey)
	setString(&cfg.DynamoDB.SecretKey, e.DynamoSecretKey)
	setString(&cfg.DynamoDB.Endpoint, e.DynamoEndpoint)
	setString(&cfg.Log.Level, e.LogLevel)

	if e.RedisDB != "" {
		db, err := strconv.Atoi(e.RedisDB)
		if err != nil {
			el.Add(fmt.Errorf("DATADIRECTOR_REDIS_DB: %w", err))
		}
		cfg.Redis.DB = db
	}
	el.Add(setDuration(&cfg.Director.FlushInterval, "DATADIRECTOR_FLUSH_INTERVAL", e.FlushInterval))
	el.Add(setDuration(&cfg.Director.NegativeCacheTTL, "DATADIRECTOR_NEGATIVE_CACHE_TTL", e.NegativeCacheTTL))
	el.Add(setDuration(&cfg.Director.ShutdownTimeout, "DATADIRECTOR_SHUTDOWN_TIMEOUT", e.ShutdownTimeout))
	el.Add(setBool(&cfg.Director.SerializeBackend, "DATADIRECTOR_SERIALIZE_BACKEND", e.SerializeBackend))
	el.Add(setBool(&cfg.Log.Pretty, "DATADIRECTOR_LOG_PRETTY", e.LogPretty))

	return el.Err()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = Duration(d)
	return nil
}

func setBool(dst *bool, name, v string) error {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	el := goerrors.NewErrorList()

	switch c.Backend {
	case BackendFile:
		if c.File.Root == "" {
			el.Add(fmt.Errorf("file.root is required"))
		}
	case BackendRedis:
		if c.Redis.Address == "" {
			el.Add(fmt.Errorf("redis.address is required"))
		}
		if c.Redis.DB < 0 {
			el.Add(fmt.Errorf("redis.db must not be negative"))
		}
	case BackendDynamoDB:
		if c.DynamoDB.Region == "" {
			el.Add(fmt.Errorf("dynamodb.region is required"))
		}
		if c.DynamoDB.Table == "" {
			el.Add(fmt.Errorf("dynamodb.table is required"))
		}
		if (c.DynamoDB.AccessKey == "") != (c.DynamoDB.SecretKey == "") {
			el.Add(fmt.Errorf("dynamodb.accessKey and dynamodb.secretKey must be set together"))
		}
	default:
		el.Add(fmt.Errorf("backend %q must be one of %s, %s, %s", c.Backend, BackendFile, BackendRedis, BackendDynamoDB))
	}

	if c.Director.FlushInterval <= 0 {
		el.Add(fmt.Errorf("director.flushInterval must be positive"))
	}
	if c.Director.NegativeCacheTTL < 0 {
		el.Add(fmt.Errorf("director.negativeCacheTTL must not be negative"))
	}
	if c.Director.ShutdownTimeout <= 0 {
		el.Add(fmt.Errorf("director.shutdownTimeout must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		el.Add(fmt.Errorf("log.level: %w", err))
	}

	return el.Err()
}

// Logger builds the process logger writing to w.
func (c LogConfig) Logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if c.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
