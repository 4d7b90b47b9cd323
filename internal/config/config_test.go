package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file must not fail: %v", err)
	}
	if c.ListenAddr != DefaultListenAddr {
		t.Errorf("listenAddr = %q, want %q", c.ListenAddr, DefaultListenAddr)
	}
	if c.Database.Driver != "sqlite" || c.Database.DSN != DefaultDatabaseDSN {
		t.Errorf("database = %+v, want sqlite defaults", c.Database)
	}
	if c.Refresh.Hour != 0 || c.Refresh.Minute != 1 {
		t.Errorf("refresh = %d:%02d, want 00:01", c.Refresh.Hour, c.Refresh.Minute)
	}
	if c.Refresh.Timezone != DefaultTimezone {
		t.Errorf("timezone = %q, want %q", c.Refresh.Timezone, DefaultTimezone)
	}
	if c.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", c.Timeout())
	}
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
listenAddr: ":9090"
api:
  baseUrl: "http://localhost:8081/v1"
  timeoutSeconds: 5
database:
  driver: postgres
  dsn: "host=localhost dbname=waste"
refresh:
  hour: 6
  minute: 30
  timezone: "Europe/Berlin"
location:
  communityId: "108"
  townId: "210"
  townName: "Testowo"
  periodId: "42"
  streetName: "Polna"
  streetId: "901"
  number: "7"
monitoredTypes:
  - "11"
  - "12"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ListenAddr != ":9090" {
		t.Errorf("listenAddr = %q", c.ListenAddr)
	}
	if c.API.BaseURL != "http://localhost:8081/v1" || c.Timeout() != 5*time.Second {
		t.Errorf("api = %+v", c.API)
	}
	if c.Database.Driver != "postgres" || c.Database.DSN != "host=localhost dbname=waste" {
		t.Errorf("database = %+v", c.Database)
	}
	if c.Refresh.Hour != 6 || c.Refresh.Minute != 30 {
		t.Errorf("refresh = %d:%02d", c.Refresh.Hour, c.Refresh.Minute)
	}
	if c.Location == nil || c.Location.CommunityID != "108" || c.Location.StreetName != "Polna" {
		t.Errorf("location = %+v", c.Location)
	}
	if len(c.MonitoredTypes) != 2 || c.MonitoredTypes[0] != "11" {
		t.Errorf("monitoredTypes = %v", c.MonitoredTypes)
	}
	tz, err := c.Refresh.Location()
	if err != nil || tz.String() != "Europe/Berlin" {
		t.Errorf("timezone = %v, %v", tz, err)
	}
}

func TestLoadPostgresKeepsEmptyDSN(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: postgres\n")
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	// The sqlite file default must not leak into a postgres DSN.
	if c.Database.DSN != "" {
		t.Errorf("dsn = %q, want empty", c.Database.DSN)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "listenAddr: [broken\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBadTimezone(t *testing.T) {
	r := RefreshConfig{Timezone: "Mars/Olympus"}
	if _, err := r.Location(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
