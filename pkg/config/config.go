package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"WhyAgent/pkg/logger"
	"WhyAgent/pkg/util"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8000" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		StaticDir       string        `yaml:"static_dir"`
		CORS            bool          `yaml:"cors" default:"true"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimit       struct {
			Capacity float64 `yaml:"capacity" default:"10" validate:"gte=0"`
			Refill   float64 `yaml:"refill_per_sec" default:"0.5" validate:"gte=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Data struct {
		// BasePath is the data root; price files live under <base>/prices.
		BasePath      string   `yaml:"base_path" default:"data" validate:"required"`
		Tickers       []string `yaml:"tickers"`
		PricePeriod   string   `yaml:"price_period" default:"3mo"`
		PriceInterval string   `yaml:"price_interval" default:"1d"`
		StrictDates   bool     `yaml:"strict_dates"`
		Horizon       int      `yaml:"horizon" default:"1" validate:"gte=1"`
	} `yaml:"data"`
	Providers struct {
		Timeout      time.Duration `yaml:"timeout" default:"15s"`
		YahooBaseURL string        `yaml:"yahoo_base_url" default:"https://query1.finance.yahoo.com"`
		StooqBaseURL string        `yaml:"stooq_base_url" default:"https://stooq.com"`
		UserAgent    string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; WhyAgent/1.0)"`
	} `yaml:"providers"`
	Model struct {
		URI          string  `yaml:"uri"`
		ArtifactRoot string  `yaml:"artifact_root" default:"mlruns"`
		CacheSize    int     `yaml:"cache_size" default:"16" validate:"gte=1"`
		TopK         int     `yaml:"top_k" default:"5" validate:"gte=1,lte=5"`
		TrainSplit   float64 `yaml:"train_split" default:"0.8" validate:"gt=0,lt=1"`
		Params       struct {
			NEstimators     int     `yaml:"n_estimators" default:"400" validate:"gte=1"`
			MaxDepth        int     `yaml:"max_depth" default:"5" validate:"gte=1,lte=16"`
			LearningRate    float64 `yaml:"learning_rate" default:"0.05" validate:"gt=0,lte=1"`
			Subsample       float64 `yaml:"subsample" default:"0.9" validate:"gt=0,lte=1"`
			ColsampleByTree float64 `yaml:"colsample_bytree" default:"0.9" validate:"gt=0,lte=1"`
			MinChildWeight  float64 `yaml:"min_child_weight" default:"1" validate:"gte=0"`
			Lambda          float64 `yaml:"reg_lambda" default:"1" validate:"gte=0"`
			RandomState     int64   `yaml:"random_state" default:"42"`
		} `yaml:"params"`
	} `yaml:"model"`
	Tracking struct {
		// URI selects the backend: sqlite:///path.db or clickhouse://.
		URI string `yaml:"uri" default:"sqlite:///whyagent.db" validate:"required"`
	} `yaml:"tracking"`
	News struct {
		APIKey   string        `yaml:"api_key"`
		BaseURL  string        `yaml:"base_url" default:"https://google.serper.dev"`
		Timeout  time.Duration `yaml:"timeout" default:"10s"`
		MaxItems int           `yaml:"max_items" default:"5" validate:"gte=1,lte=20"`
		Country  string        `yaml:"country" default:"us"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"10m"`
	} `yaml:"news"`
	LLM struct {
		APIKey      string        `yaml:"api_key"`
		BaseURL     string        `yaml:"base_url"`
		Model       string        `yaml:"model" default:"gpt-4o-mini"`
		Temperature float32       `yaml:"temperature"`
		MaxTokens   int           `yaml:"max_tokens" default:"800"`
		Timeout     time.Duration `yaml:"timeout" default:"60s"`
		Language    string        `yaml:"language" default:"Korean"`
		CacheTTL    time.Duration `yaml:"cache_ttl" default:"30m"`
	} `yaml:"llm"`
	Calendar struct {
		// Exchange is the MIC whose sessions define the prompt's target date.
		Exchange string `yaml:"exchange" default:"XNYS"`
	} `yaml:"calendar"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"whyagent"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers"`
		PredictionsTopic string   `yaml:"predictions_topic" default:"whyagent.predictions"`
		TrainTopic       string   `yaml:"train_topic" default:"whyagent.train-requests"`
		RequiredAcks     int      `yaml:"required_acks" default:"1"`
		Compression      string   `yaml:"compression" default:"snappy"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"whyagent-trainer"`
			Workers    int           `yaml:"workers" default:"1" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"16"`
			RetryMax   int           `yaml:"retry_max" default:"2"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"whyagent"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"10" validate:"gte=1"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"5" validate:"gte=0"`
	} `yaml:"clickhouse"`
}

// New returns a config populated with defaults only.
func New() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := New()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file is not an error; defaults plus environment are used.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		c, err = Load(path)
	} else {
		c, err = New()
	}
	if err != nil {
		return nil, err
	}

	c.ApplyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.Model.URI, "MODEL_URI")
	set(&c.LLM.APIKey, "OPENAI_API_KEY")
	set(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	set(&c.News.APIKey, "SERPER_API_KEY")
	set(&c.Tracking.URI, "TRACKING_URI", "MLFLOW_TRACKING_URI")
	set(&c.Data.BasePath, "DATA_BASE_PATH")
	set(&c.Redis.Host, "REDIS_HOST")
	set(&c.ClickHouse.Host, "CLICKHOUSE_HOST")
	set(&c.Log.Level, "LOG_LEVEL")

	if v := getenv("HTTP_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("TICKERS"); v != "" {
		c.Data.Tickers = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if !strings.HasPrefix(c.Tracking.URI, "sqlite://") && !strings.HasPrefix(c.Tracking.URI, "clickhouse://") {
		return fmt.Errorf("tracking.uri must start with sqlite:// or clickhouse://, got '%s'", c.Tracking.URI)
	}
	if strings.HasPrefix(c.Tracking.URI, "clickhouse://") && !c.ClickHouse.Enabled {
		return fmt.Errorf("tracking.uri uses clickhouse but clickhouse.enabled is false")
	}
	return nil
}

// PricesDir is the directory holding per-ticker price files.
func (c *Config) PricesDir() string {
	return strings.TrimRight(c.Data.BasePath, "/") + "/prices"
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
