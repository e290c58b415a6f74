package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDevDefaults(t *testing.T) {
	cfg, err := Load("reportrunner-api", mapLookup(nil))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q", cfg.Profile)
	}
	if cfg.Service.Name != "reportrunner-api" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Warehouse.Driver != "duckdb" {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if cfg.Router.RowThreshold != 1000 {
		t.Fatalf("Router.RowThreshold = %d", cfg.Router.RowThreshold)
	}
	if cfg.Router.ByteThreshold != 5_000_000 {
		t.Fatalf("Router.ByteThreshold = %d", cfg.Router.ByteThreshold)
	}
	if cfg.Engine.MaxRetries != 2 {
		t.Fatalf("Engine.MaxRetries = %d", cfg.Engine.MaxRetries)
	}
	if cfg.Engine.RetryBackoff != 250*time.Millisecond {
		t.Fatalf("Engine.RetryBackoff = %v", cfg.Engine.RetryBackoff)
	}
	if cfg.JobStore.JobTTL != 30*24*time.Hour {
		t.Fatalf("JobStore.JobTTL = %v", cfg.JobStore.JobTTL)
	}
	if !cfg.Worker.Embedded {
		t.Fatal("Worker.Embedded = false in dev")
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required = true in dev")
	}
	if cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = true in dev")
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadProdProfile(t *testing.T) {
	cfg, err := Load("reportrunner-api", mapLookup(map[string]string{
		"REPORTRUNNER_PROFILE": "prod",
	}))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Warehouse.Driver != "postgres" {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket = true in prod")
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false in prod")
	}
	if cfg.Worker.Embedded {
		t.Fatal("Worker.Embedded = true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadTestProfile(t *testing.T) {
	cfg, err := Load("reportrunner-api", mapLookup(map[string]string{
		"REPORTRUNNER_PROFILE": "test",
	}))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.HTTP.Address != ":18080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := Load("reportrunner-api", mapLookup(map[string]string{
		"REPORTRUNNER_HTTP_ADDR":             ":9999",
		"REPORTRUNNER_WAREHOUSE_DSN":         "postgres://report:secret@db:5432/analytics",
		"REPORTRUNNER_ROUTER_ROW_THRESHOLD":  "250",
		"REPORTRUNNER_ROUTER_BYTE_THRESHOLD": "1048576",
		"REPORTRUNNER_ENGINE_MAX_RETRIES":    "5",
		"REPORTRUNNER_ENGINE_RETRY_BACKOFF":  "1s",
		"REPORTRUNNER_JOBSTORE_JOB_TTL":      "48h",
		"REPORTRUNNER_WORKER_EMBEDDED":       "false",
		"REPORTRUNNER_WORKER_STUCK_AFTER":    "5m",
		"REPORTRUNNER_NOTIFY_WEBHOOK_URL":    "https://hooks.internal/report-finished",
		"REPORTRUNNER_LOG_LEVEL":             "error",
		"REPORTRUNNER_AUTH_REQUIRED":         "true",
		"REPORTRUNNER_AUTH_STATIC_KEYS":      "k1:tenant-a:report_reader",
	}))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Warehouse.DSN != "postgres://report:secret@db:5432/analytics" {
		t.Fatalf("Warehouse.DSN = %q", cfg.Warehouse.DSN)
	}
	if cfg.Router.RowThreshold != 250 || cfg.Router.ByteThreshold != 1048576 {
		t.Fatalf("Router = %+v", cfg.Router)
	}
	if cfg.Engine.MaxRetries != 5 || cfg.Engine.RetryBackoff != time.Second {
		t.Fatalf("Engine = %+v", cfg.Engine)
	}
	if cfg.JobStore.JobTTL != 48*time.Hour {
		t.Fatalf("JobStore.JobTTL = %v", cfg.JobStore.JobTTL)
	}
	if cfg.Worker.Embedded {
		t.Fatal("Worker.Embedded override ignored")
	}
	if cfg.Worker.StuckAfter != 5*time.Minute {
		t.Fatalf("Worker.StuckAfter = %v", cfg.Worker.StuckAfter)
	}
	if cfg.Notify.WebhookURL != "https://hooks.internal/report-finished" {
		t.Fatalf("Notify.WebhookURL = %q", cfg.Notify.WebhookURL)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required || cfg.Auth.StaticKeys == "" {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "unknown profile",
			env:  map[string]string{"REPORTRUNNER_PROFILE": "staging"},
			want: "REPORTRUNNER_PROFILE",
		},
		{
			name: "bad duration",
			env:  map[string]string{"REPORTRUNNER_HTTP_READ_TIMEOUT": "sometimes"},
			want: "REPORTRUNNER_HTTP_READ_TIMEOUT",
		},
		{
			name: "bad integer",
			env:  map[string]string{"REPORTRUNNER_ENGINE_MAX_RETRIES": "two"},
			want: "REPORTRUNNER_ENGINE_MAX_RETRIES",
		},
		{
			name: "bad bool",
			env:  map[string]string{"REPORTRUNNER_AUTH_REQUIRED": "yep"},
			want: "REPORTRUNNER_AUTH_REQUIRED",
		},
		{
			name: "bad log level",
			env:  map[string]string{"REPORTRUNNER_LOG_LEVEL": "loud"},
			want: "REPORTRUNNER_LOG_LEVEL",
		},
		{
			name: "zero row threshold",
			env:  map[string]string{"REPORTRUNNER_ROUTER_ROW_THRESHOLD": "0"},
			want: "row threshold",
		},
		{
			name: "negative retries",
			env:  map[string]string{"REPORTRUNNER_ENGINE_MAX_RETRIES": "-1"},
			want: "max retries",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load("reportrunner-api", mapLookup(tc.env))
			if err == nil {
				t.Fatal("Load() accepted invalid value")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadRequiresLookup(t *testing.T) {
	if _, err := Load("reportrunner-api", nil); err == nil {
		t.Fatal("Load(nil lookup) succeeded")
	}
}

func TestLoadTrimsWhitespace(t *testing.T) {
	cfg, err := Load("reportrunner-api", mapLookup(map[string]string{
		"REPORTRUNNER_HTTP_ADDR":          "  :7070  ",
		"REPORTRUNNER_WORKER_EMBEDDED":    " true ",
		"REPORTRUNNER_ENGINE_MAX_RETRIES": " 3 ",
	}))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.HTTP.Address != ":7070" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if !cfg.Worker.Embedded || cfg.Engine.MaxRetries != 3 {
		t.Fatalf("trimmed values not applied: %+v %+v", cfg.Worker, cfg.Engine)
	}
}
