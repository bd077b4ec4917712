package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
elasticsearch:
  addresses:
    - "http://es-1:9200"
    - "http://es-2:9200"
  username: "elastic"
  password: "secret"
  version: "7.17"
service:
  index: "people"
  id_field: "id"
  parent_field: "parent"
  join_field: "aka"
  refresh: "wait_for"
  paginate:
    default: 10
    max: 50
security:
  max_query_depth: 8
  max_bulk_operations: 100
  allowed_raw_methods:
    - "search"
    - "indices.*"
logging:
  level: "debug"
  format: "console"
metrics:
  listen: ":9999"
maintenance:
  jobs:
    - schedule: "*/5 * * * *"
      method: "indices.refresh"
      indices: ["people"]
`
	path := writeTempFile(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Elasticsearch.Addresses) != 2 || cfg.Elasticsearch.Addresses[1] != "http://es-2:9200" {
		t.Errorf("Elasticsearch.Addresses = %v", cfg.Elasticsearch.Addresses)
	}
	if cfg.Elasticsearch.Username != "elastic" {
		t.Errorf("Elasticsearch.Username = %q", cfg.Elasticsearch.Username)
	}
	if cfg.Elasticsearch.Version != "7.17" {
		t.Errorf("Elasticsearch.Version = %q", cfg.Elasticsearch.Version)
	}
	if cfg.Service.IDField != "id" || cfg.Service.ParentField != "parent" || cfg.Service.JoinField != "aka" {
		t.Errorf("Service fields = %+v", cfg.Service)
	}
	if cfg.Service.RoutingField != "_routing" {
		t.Errorf("default RoutingField = %q", cfg.Service.RoutingField)
	}
	if cfg.Service.Refresh != "wait_for" {
		t.Errorf("Service.Refresh = %q", cfg.Service.Refresh)
	}
	if cfg.Service.Paginate.Default != 10 || cfg.Service.Paginate.Max != 50 {
		t.Errorf("Service.Paginate = %+v", cfg.Service.Paginate)
	}
	if cfg.Security.MaxQueryDepth != 8 || cfg.Security.MaxBulkOperations != 100 {
		t.Errorf("Security = %+v", cfg.Security)
	}
	if len(cfg.Security.AllowedRawMethods) != 2 {
		t.Errorf("AllowedRawMethods = %v", cfg.Security.AllowedRawMethods)
	}
	if cfg.Metrics.Listen != ":9999" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
	if len(cfg.Maintenance.Jobs) != 1 {
		t.Fatalf("Maintenance.Jobs = %v", cfg.Maintenance.Jobs)
	}
	if job := cfg.Maintenance.Jobs[0]; job.Name != "indices.refresh" || job.Indices[0] != "people" {
		t.Errorf("job = %+v", job)
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
service:
  index: "people"
`
	path := writeTempFile(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Elasticsearch.Addresses) != 1 || cfg.Elasticsearch.Addresses[0] != "http://localhost:9200" {
		t.Errorf("default Addresses = %v", cfg.Elasticsearch.Addresses)
	}
	if cfg.Elasticsearch.Version != "8.0" {
		t.Errorf("default Version = %q", cfg.Elasticsearch.Version)
	}
	if cfg.Service.IDField != "_id" || cfg.Service.MetaField != "_meta" {
		t.Errorf("default fields = %+v", cfg.Service)
	}
	if cfg.Service.Refresh != "false" {
		t.Errorf("default Refresh = %q", cfg.Service.Refresh)
	}
	if cfg.Security.MaxQueryDepth != 50 {
		t.Errorf("default MaxQueryDepth = %d, want 50", cfg.Security.MaxQueryDepth)
	}
	if cfg.Security.MaxBulkOperations != 10000 {
		t.Errorf("default MaxBulkOperations = %d, want 10000", cfg.Security.MaxBulkOperations)
	}
	if cfg.Security.MaxQueryStringLength != 500 {
		t.Errorf("default MaxQueryStringLength = %d", cfg.Security.MaxQueryStringLength)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
}

func TestLoad_MissingIndex(t *testing.T) {
	content := `
elasticsearch:
  addresses: ["http://es:9200"]
`
	path := writeTempFile(t, content)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing service.index")
	}
}

func TestLoad_InvalidRefresh(t *testing.T) {
	content := `
service:
  index: "people"
  refresh: "sometimes"
`
	path := writeTempFile(t, content)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid service.refresh")
	}
}

func TestLoad_PaginateDefaultAboveMax(t *testing.T) {
	content := `
service:
  index: "people"
  paginate:
    default: 100
    max: 10
`
	path := writeTempFile(t, content)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for paginate.default > paginate.max")
	}
}

func TestLoad_JobWithoutSchedule(t *testing.T) {
	content := `
service:
  index: "people"
maintenance:
  jobs:
    - method: "indices.refresh"
`
	path := writeTempFile(t, content)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for job without schedule")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
