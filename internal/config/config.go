package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete application configuration.
type Config struct {
	Elasticsearch ElasticsearchConfig `koanf:"elasticsearch"`
	Service       ServiceConfig       `koanf:"service"`
	Security      SecurityConfig      `koanf:"security"`
	Logging       LoggingConfig       `koanf:"logging"`
	Metrics       MetricsConfig       `koanf:"metrics"`
	Maintenance   MaintenanceConfig   `koanf:"maintenance"`
}

type ElasticsearchConfig struct {
	Addresses []string  `koanf:"addresses"`
	Username  string    `koanf:"username"`
	Password  string    `koanf:"password"`
	APIKey    string    `koanf:"api_key"`
	Version   string    `koanf:"version"`  // Engine major.minor, selects the capability descriptor.
	DocType   string    `koanf:"doc_type"` // Mapping type for engines that still require one.
	TLS       TLSConfig `koanf:"tls"`
}

type TLSConfig struct {
	CACert     string `koanf:"ca_cert"`
	SkipVerify bool   `koanf:"skip_verify"`
}

// ServiceConfig names the index and the document fields the service maps
// between the caller's shape and the engine's metadata.
type ServiceConfig struct {
	Index        string         `koanf:"index"`
	IDField      string         `koanf:"id_field"`
	ParentField  string         `koanf:"parent_field"`
	RoutingField string         `koanf:"routing_field"`
	MetaField    string         `koanf:"meta_field"`
	JoinField    string         `koanf:"join_field"`
	Refresh      string         `koanf:"refresh"` // "false", "true" or "wait_for".
	Paginate     PaginateConfig `koanf:"paginate"`
}

type PaginateConfig struct {
	Default int `koanf:"default"`
	Max     int `koanf:"max"`
}

type SecurityConfig struct {
	MaxQueryDepth        int      `koanf:"max_query_depth"`
	MaxBulkOperations    int      `koanf:"max_bulk_operations"`
	MaxArraySize         int      `koanf:"max_array_size"`
	MaxQueryStringLength int      `koanf:"max_query_string_length"`
	AllowedRawMethods    []string `koanf:"allowed_raw_methods"`
	AllowedIndices       []string `koanf:"allowed_indices"`
	SearchableFields     []string `koanf:"searchable_fields"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console".
}

type MetricsConfig struct {
	Listen string `koanf:"listen"`
}

type MaintenanceConfig struct {
	Jobs []JobConfig `koanf:"jobs"`
}

// JobConfig describes one scheduled raw passthrough call.
type JobConfig struct {
	Name     string   `koanf:"name" json:"name"`
	Schedule string   `koanf:"schedule" json:"schedule"`
	Method   string   `koanf:"method" json:"method"`
	Indices  []string `koanf:"indices" json:"indices,omitempty"`
}

// Load reads configuration from the given YAML file path.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if len(cfg.Elasticsearch.Addresses) == 0 {
		cfg.Elasticsearch.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.Elasticsearch.Version == "" {
		cfg.Elasticsearch.Version = "8.0"
	}
	if cfg.Service.IDField == "" {
		cfg.Service.IDField = "_id"
	}
	if cfg.Service.ParentField == "" {
		cfg.Service.ParentField = "_parent"
	}
	if cfg.Service.RoutingField == "" {
		cfg.Service.RoutingField = "_routing"
	}
	if cfg.Service.MetaField == "" {
		cfg.Service.MetaField = "_meta"
	}
	if cfg.Service.Refresh == "" {
		cfg.Service.Refresh = "false"
	}
	if cfg.Security.MaxQueryDepth <= 0 {
		cfg.Security.MaxQueryDepth = 50
	}
	if cfg.Security.MaxBulkOperations <= 0 {
		cfg.Security.MaxBulkOperations = 10000
	}
	if cfg.Security.MaxArraySize <= 0 {
		cfg.Security.MaxArraySize = 10000
	}
	if cfg.Security.MaxQueryStringLength <= 0 {
		cfg.Security.MaxQueryStringLength = 500
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9108"
	}
	for i := range cfg.Maintenance.Jobs {
		if cfg.Maintenance.Jobs[i].Name == "" {
			cfg.Maintenance.Jobs[i].Name = cfg.Maintenance.Jobs[i].Method
		}
	}
}

func validate(cfg *Config) error {
	for _, addr := range cfg.Elasticsearch.Addresses {
		if _, err := url.Parse(addr); err != nil {
			return fmt.Errorf("invalid elasticsearch.addresses entry %q: %w", addr, err)
		}
	}

	if cfg.Service.Index == "" {
		return fmt.Errorf("service.index is required")
	}

	switch cfg.Service.Refresh {
	case "true", "false", "wait_for":
	default:
		return fmt.Errorf("service.refresh must be one of true, false, wait_for; got %q", cfg.Service.Refresh)
	}

	if cfg.Service.Paginate.Max > 0 && cfg.Service.Paginate.Default > cfg.Service.Paginate.Max {
		return fmt.Errorf("service.paginate.default (%d) exceeds service.paginate.max (%d)",
			cfg.Service.Paginate.Default, cfg.Service.Paginate.Max)
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console; got %q", cfg.Logging.Format)
	}

	for i, job := range cfg.Maintenance.Jobs {
		if job.Schedule == "" || job.Method == "" {
			return fmt.Errorf("maintenance.jobs[%d]: schedule and method are required", i)
		}
	}

	return nil
}
