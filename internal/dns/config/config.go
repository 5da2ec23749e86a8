// Package config loads the decoy policy once at startup. The returned
// AppConfig is treated as immutable for the life of the process; every
// consumer only reads it.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ErrConfiguration marks every failure to produce a usable configuration.
// The server must not start when Load returns it.
var ErrConfiguration = errors.New("configuration error")

// Mode selects how forward answers are produced.
type Mode string

const (
	// ModeFixed draws answers from the configured address pools.
	ModeFixed Mode = "fixed"
	// ModeRandom synthesizes a fresh address per query.
	ModeRandom Mode = "random"
)

// AppConfig is the root configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
	Decoy     DecoyConfig     `koanf:"decoy"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type LogConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

type ServerConfig struct {
	// Port is the network port the DNS server binds to over UDP and TCP.
	Port int `koanf:"port" validate:"required,gte=1,lte=65535"`

	// Domain is the decoy's own domain; it is reported as the sensor name.
	Domain string `koanf:"domain" validate:"required,fqdn"`

	// Address overrides the server address reported in telemetry when the
	// listener is bound to an unspecified address. Empty means detect.
	Address string `koanf:"address" validate:"omitempty,ip"`
}

type DecoyConfig struct {
	Mode    Mode          `koanf:"mode" validate:"required,oneof=fixed random"`
	Pools   PoolsConfig   `koanf:"pools"`
	Buckets BucketsConfig `koanf:"buckets"`
}

// PoolsConfig lists the addresses served in fixed mode.
type PoolsConfig struct {
	IPv4 []string `koanf:"ipv4" validate:"dive,ipv4"`
	IPv6 []string `koanf:"ipv6" validate:"dive,ipv6"`
}

// BucketsConfig holds the six ordered groups hostnames are composed from:
// <location>-<direction>-<service><counter>.<department>.<domain>
type BucketsConfig struct {
	Locations   []string     `koanf:"locations" validate:"required,min=1,dive,dns_label"`
	Directions  []string     `koanf:"directions" validate:"required,min=1,dive,dns_label"`
	Services    []string     `koanf:"services" validate:"required,min=1,dive,dns_label"`
	Counter     CounterRange `koanf:"counter"`
	Departments []string     `koanf:"departments" validate:"required,min=1,dive,dns_label"`
	Domains     []string     `koanf:"domains" validate:"required,min=1,dive,fqdn"`
}

// MaxCounter bounds both ends of the hostname counter range.
const MaxCounter = 1_000_000

// CounterRange is an inclusive integer range within [0, MaxCounter].
type CounterRange struct {
	Min int `koanf:"min" validate:"gte=0,lte=1000000"`
	Max int `koanf:"max" validate:"gtefield=Min,lte=1000000"`
}

type TelemetryConfig struct {
	// Queue bounds the number of events waiting for delivery to sinks.
	Queue int `koanf:"queue" validate:"gte=1"`

	Handlers      HandlersConfig      `koanf:"handlers"`
	Elasticsearch ElasticsearchConfig `koanf:"elasticsearch"`
	File          FileConfig          `koanf:"file"`
	Archive       ArchiveConfig       `koanf:"archive"`
	Sources       SourcesConfig       `koanf:"sources"`
}

// HandlersConfig enables individual telemetry sinks.
type HandlersConfig struct {
	Elasticsearch bool `koanf:"elasticsearch"`
	Screen        bool `koanf:"screen"`
	File          bool `koanf:"file"`
	Archive       bool `koanf:"archive"`
	Sources       bool `koanf:"sources"`
}

type ElasticsearchConfig struct {
	URL      string        `koanf:"url" validate:"required,url"`
	Index    string        `koanf:"index" validate:"required"`
	Batch    int           `koanf:"batch" validate:"gte=1"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

type FileConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type ArchiveConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type SourcesConfig struct {
	// Size bounds how many sources keep a live query counter.
	Size int `koanf:"size" validate:"gte=1"`
}

type MetricsConfig struct {
	// Addr is the listen address of the Prometheus endpoint. Empty disables it.
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"`
}

// DEFAULT_APP_CONFIG mirrors the historical honeypot defaults.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LogConfig{Level: "info"},
	Server: ServerConfig{
		Port:   53,
		Domain: "services.example.com",
	},
	Decoy: DecoyConfig{
		Mode: ModeRandom,
		Pools: PoolsConfig{
			IPv4: []string{"192.168.1.2"},
			IPv6: []string{"::1"},
		},
		Buckets: BucketsConfig{
			Locations:   []string{"eu", "us", "cn", "br", "ru"},
			Directions:  []string{"north", "east", "south", "west", "central"},
			Services:    []string{"aws", "smb", "dc", "fs", "sip"},
			Counter:     CounterRange{Min: 1, Max: 8},
			Departments: []string{"srvpool", "client", "it", "head"},
			Domains:     []string{"example.com", "sample.com"},
		},
	},
	Telemetry: TelemetryConfig{
		Queue: 1024,
		Handlers: HandlersConfig{
			Elasticsearch: true,
			Screen:        true,
			File:          true,
		},
		Elasticsearch: ElasticsearchConfig{
			URL:      "http://127.0.0.1:9200",
			Index:    "honeypot",
			Batch:    500,
			Interval: time.Second,
		},
		File:    FileConfig{Path: "honeypot_output.txt"},
		Archive: ArchiveConfig{Path: "/var/lib/decoy-dns/events.db"},
		Sources: SourcesConfig{Size: 4096},
	},
}

var dnsLabelRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// validDNSLabel reports whether the field is a single hostname label, so
// generated names stay resolvable-looking.
func validDNSLabel(fl validator.FieldLevel) bool {
	return dnsLabelRegex.MatchString(fl.Field().String())
}

// validateDecoy enforces that fixed mode has something to serve in both
// address families.
func validateDecoy(sl validator.StructLevel) {
	dc := sl.Current().Interface().(DecoyConfig)
	if dc.Mode != ModeFixed {
		return
	}
	if len(dc.Pools.IPv4) == 0 {
		sl.ReportError(dc.Pools.IPv4, "Pools.IPv4", "IPv4", "required_fixed", "")
	}
	if len(dc.Pools.IPv6) == 0 {
		sl.ReportError(dc.Pools.IPv6, "Pools.IPv6", "IPv6", "required_fixed", "")
	}
}

// envLoader loads environment variables with the prefix "DNS_". Underscores
// become key separators (DNS_DECOY_POOLS_IPV4 -> decoy.pools.ipv4) and values
// containing spaces or commas become lists.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "DNS_"))
			key = strings.ReplaceAll(key, "_", ".")
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader merges a YAML configuration file over the defaults.
var fileLoader = func(k *koanf.Koanf, path string) error {
	return k.Load(file.Provider(path), yaml.Parser())
}

// registerValidation registers the custom rules used by AppConfig tags.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("dns_label", validDNSLabel); err != nil {
		return err
	}
	v.RegisterStructValidation(validateDecoy, DecoyConfig{})
	return nil
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then DNS_* environment variables, and validates the result. Every
// error wraps ErrConfiguration.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("%w: loading defaults: %w", ErrConfiguration, err)
	}

	if path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("%w: loading %s: %w", ErrConfiguration, path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("%w: loading env: %w", ErrConfiguration, err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshalling: %w", ErrConfiguration, err)
	}
	cfg.Decoy.Mode = Mode(strings.ToLower(string(cfg.Decoy.Mode)))

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("%w: registering validation: %w", ErrConfiguration, err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: validation failed: %w", ErrConfiguration, err)
	}

	return &cfg, nil
}
