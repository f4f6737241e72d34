package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreNone       = "none"
	StoreFilesystem = "filesystem"
	StoreMongo      = "mongo"
)

type Config struct {
	Server HTTPServerConfig `json:"server"`
	LLM    LLMConfig        `json:"llm"`
	Store  StoreConfig      `json:"store"`
	Log    LogConfig        `json:"log"`
}

type HTTPServerConfig struct {
	Host         string        `json:"host" split_words:"true"`
	Port         int           `json:"port" split_words:"true"`
	ReadTimeout  time.Duration `json:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `json:"write_timeout" split_words:"true"`
	// MetricsAddr starts a second listener serving only /metrics. Empty disables it.
	MetricsAddr string `json:"metrics_addr" split_words:"true"`
}

type LLMConfig struct {
	Provider string `json:"provider" split_words:"true"`
	APIKey   string `json:"-" split_words:"true"`
	BaseURL  string `json:"base_url" split_words:"true"`
	// Model falls back to the provider's default when empty.
	Model string `json:"model" split_words:"true"`
	// Timeout bounds one call to the external API. Zero means no bound.
	Timeout time.Duration `json:"timeout" split_words:"true"`
	// MaxConcurrent caps simultaneous calls to the external API. Zero means unlimited.
	MaxConcurrent int `json:"max_concurrent" split_words:"true"`
}

type StoreConfig struct {
	Backend       string `json:"backend" split_words:"true"`
	Dir           string `json:"dir" split_words:"true"`
	MongoURI      string `json:"-" split_words:"true"`
	MongoDatabase string `json:"mongo_database" split_words:"true"`
}

type LogConfig struct {
	Level string `json:"level" split_words:"true"`
}

func Default() *Config {
	return &Config{
		Server: HTTPServerConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			ReadTimeout:  120 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "gemini",
		},
		Store: StoreConfig{
			Backend:       StoreNone,
			Dir:           "./generations",
			MongoDatabase: "pluginrelay",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the optional HCL file named by
// CONFIG_FILE, a .env file and the process environment, later sources winning.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type fileConfig struct {
	Server *struct {
		Host         string `hcl:"host,optional"`
		Port         int    `hcl:"port,optional"`
		ReadTimeout  string `hcl:"read_timeout,optional"`
		WriteTimeout string `hcl:"write_timeout,optional"`
		MetricsAddr  string `hcl:"metrics_addr,optional"`
	} `hcl:"server,block"`
	LLM *struct {
		Provider      string `hcl:"provider,optional"`
		APIKey        string `hcl:"api_key,optional"`
		BaseURL       string `hcl:"base_url,optional"`
		Model         string `hcl:"model,optional"`
		Timeout       string `hcl:"timeout,optional"`
		MaxConcurrent int    `hcl:"max_concurrent,optional"`
	} `hcl:"llm,block"`
	Store *struct {
		Backend       string `hcl:"backend,optional"`
		Dir           string `hcl:"dir,optional"`
		MongoURI      string `hcl:"mongo_uri,optional"`
		MongoDatabase string `hcl:"mongo_database,optional"`
	} `hcl:"store,block"`
	Log *struct {
		Level string `hcl:"level,optional"`
	} `hcl:"log,block"`
}

// LoadFile overlays the values set in an HCL (or HCL JSON) file. Attributes
// left out of the file keep their current value.
func (c *Config) LoadFile(path string) error {
	var f fileConfig
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	var errs *multierror.Error
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, name, v string) {
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}

	if s := f.Server; s != nil {
		setString(&c.Server.Host, s.Host)
		if s.Port != 0 {
			c.Server.Port = s.Port
		}
		setDuration(&c.Server.ReadTimeout, "server.read_timeout", s.ReadTimeout)
		setDuration(&c.Server.WriteTimeout, "server.write_timeout", s.WriteTimeout)
		setString(&c.Server.MetricsAddr, s.MetricsAddr)
	}
	if l := f.LLM; l != nil {
		setString(&c.LLM.Provider, l.Provider)
		setString(&c.LLM.APIKey, l.APIKey)
		setString(&c.LLM.BaseURL, l.BaseURL)
		setString(&c.LLM.Model, l.Model)
		setDuration(&c.LLM.Timeout, "llm.timeout", l.Timeout)
		if l.MaxConcurrent != 0 {
			c.LLM.MaxConcurrent = l.MaxConcurrent
		}
	}
	if s := f.Store; s != nil {
		setString(&c.Store.Backend, s.Backend)
		setString(&c.Store.Dir, s.Dir)
		setString(&c.Store.MongoURI, s.MongoURI)
		setString(&c.Store.MongoDatabase, s.MongoDatabase)
	}
	if l := f.Log; l != nil {
		setString(&c.Log.Level, l.Level)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem at once. A missing API key is not an error:
// it surfaces as a failed generation at request time.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = multierror.Append(errs, errors.New("server timeouts must not be negative"))
	}

	switch c.LLM.Provider {
	case "gemini", "openai", "ollama":
	default:
		errs = multierror.Append(errs, fmt.Errorf("llm.provider %q is not one of gemini, openai, ollama", c.LLM.Provider))
	}
	if c.LLM.Timeout < 0 {
		errs = multierror.Append(errs, errors.New("llm.timeout must not be negative"))
	}
	if c.LLM.MaxConcurrent < 0 {
		errs = multierror.Append(errs, errors.New("llm.max_concurrent must not be negative"))
	}

	switch c.Store.Backend {
	case StoreNone:
	case StoreFilesystem:
		if c.Store.Dir == "" {
			errs = multierror.Append(errs, errors.New("store.dir is required for the filesystem backend"))
		}
	case StoreMongo:
		if c.Store.MongoURI == "" {
			errs = multierror.Append(errs, errors.New("store.mongo_uri is required for the mongo backend"))
		}
		if c.Store.MongoDatabase == "" {
			errs = multierror.Append(errs, errors.New("store.mongo_database is required for the mongo backend"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("store.backend %q is not one of none, filesystem, mongo", c.Store.Backend))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
