package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"MicroGrid/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"microgrid.log"`
	} `yaml:"log"`
	Loop struct {
		Delay         time.Duration `yaml:"delay"`
		Frequency     float64       `yaml:"frequency" default:"60"`
		SOC           float64       `yaml:"soc" default:"50"`
		Inertia       int           `yaml:"inertia" default:"40"`
		Dt            float64       `yaml:"dt" default:"1"`
		FileTag       string        `yaml:"file_tag"`
		MaxIterations uint64        `yaml:"max_iterations"`
		Console       bool          `yaml:"console" default:"true"`
	} `yaml:"loop"`
	Grid struct {
		MaxCurtail         float64 `yaml:"max_curtail" default:"5000" validate:"gte=0"`
		MaxBatteryOutput   float64 `yaml:"max_battery_output" default:"1000" validate:"gte=0"`
		MaxBatteryCapacity float64 `yaml:"max_battery_capacity" default:"15000" validate:"gt=0"`
		PowerStep          float64 `yaml:"power_step" validate:"gte=0"`
		PowerMax           float64 `yaml:"power_max" default:"1000" validate:"gte=0"`
		CurtailEnabled     bool    `yaml:"curtail_enabled"`
		HaltLow            float64 `yaml:"halt_low" default:"58"`
		HaltHigh           float64 `yaml:"halt_high" default:"62" validate:"gtfield=HaltLow"`
		InputRamp          struct {
			Enabled bool    `yaml:"enabled"`
			Start   float64 `yaml:"start" default:"0.02"`
			Stop    float64 `yaml:"stop" default:"0.09"`
			Step    float64 `yaml:"step" default:"0.001"`
			Initial float64 `yaml:"initial" default:"3"`
		} `yaml:"input_ramp"`
	} `yaml:"grid"`
	Device struct {
		Type             string        `yaml:"type" default:"waveshare" validate:"oneof=waveshare simulated"`
		SPIPort          string        `yaml:"spi_port" default:"SPI0.1"`
		SPISpeedHz       int64         `yaml:"spi_speed_hz" default:"976000" validate:"gt=0"`
		ADCChipSelect    string        `yaml:"adc_cs_pin" default:"GPIO22"`
		DACChipSelect    string        `yaml:"dac_cs_pin" default:"GPIO23"`
		DataReadyPin     string        `yaml:"drdy_pin" default:"GPIO17"`
		SettleDelay      time.Duration `yaml:"settle_delay" default:"200us"`
		ExpectedID       int           `yaml:"expected_id" default:"3"`
		ADCVRef          float64       `yaml:"adc_vref" default:"2.5" validate:"gt=0"`
		ADCGain          int           `yaml:"adc_gain" default:"1" validate:"oneof=1 2 4 8 16 32 64"`
		DACVRef          float64       `yaml:"dac_vref" default:"5" validate:"gt=0"`
		VoltageMagnitude float64       `yaml:"voltage_magnitude" default:"1" validate:"gt=0"`
		Simulated        struct {
			InputVolts []float64 `yaml:"input_volts"`
			Loopback   bool      `yaml:"loopback"`
		} `yaml:"simulated"`
	} `yaml:"device"`
	Output struct {
		Dir  string `yaml:"dir" default:"output"`
		Plot string `yaml:"plot"`
	} `yaml:"output"`
	Telemetry struct {
		Backend    string        `yaml:"backend" default:"none" validate:"oneof=none kafka clickhouse"`
		Host       string        `yaml:"host"`
		Port       int           `yaml:"port" validate:"gte=0,lte=65535"`
		BufferSize int           `yaml:"buffer_size" default:"1000" validate:"gt=0"`
		Timeout    time.Duration `yaml:"timeout" default:"2s"`
		LogTopic   string        `yaml:"log_topic" default:"microgrid.logs"`
	} `yaml:"telemetry"`
	Server struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"5s"`
	} `yaml:"server"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"microgrid.records"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"microgrid-ingest"`
			Workers    int           `yaml:"workers" default:"1"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"microgrid"`
		Table            string        `yaml:"table" default:"records"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"microgrid"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Default returns a config populated only from default tags.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
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
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MICROGRID_DEVICE"); v != "" {
		c.Device.Type = v
	}
	if v := os.Getenv("MICROGRID_BACKEND"); v != "" {
		c.Telemetry.Backend = v
	}
	if v := os.Getenv("MICROGRID_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if ok {
			c.Redis.Port = util.ParseIntDefault(port, c.Redis.Port)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks the structural fields. Loop values are not rejected here;
// see NormalizeLoop. Kafka brokers may still come from the -e flag, so the
// producer checks them when it is created.
func (c *Config) Validate() error {
	return validate.Struct(c)
}
