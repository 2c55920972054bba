package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Session: SessionConfig{
			LocalAS:             65001,
			LocalIP:             "10.0.0.1",
			PeerAS:              65010,
			PeerIP:              "10.0.0.2",
			TickIntervalSeconds: 10,
		},
		Inject: InjectConfig{
			LocalPref: 500,
		},
		Journal: JournalConfig{
			MaxConns:      10,
			MinConns:      1,
			RetentionDays: 30,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_BadLocalAS(t *testing.T) {
	for _, asn := range []uint32{0, 65536} {
		cfg := validConfig()
		cfg.Session.LocalAS = asn
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for local_as = %d", asn)
		}
	}
}

func TestValidate_BadPeerIP(t *testing.T) {
	cfg := validConfig()
	cfg.Session.PeerIP = "10.0.0.256"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad peer_ip")
	}
}

func TestValidate_BadLocalIP(t *testing.T) {
	cfg := validConfig()
	cfg.Session.LocalIP = "nope"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad local_ip")
	}
}

func TestValidate_TickIntervalZero(t *testing.T) {
	cfg := validConfig()
	cfg.Session.TickIntervalSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for tick_interval_seconds = 0")
	}
}

func TestValidate_DryRunWithoutFile(t *testing.T) {
	cfg := validConfig()
	cfg.Inject.DryRun = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for dry_run without inject.file")
	}
}

func TestValidate_UnreadableInjectFile(t *testing.T) {
	cfg := validConfig()
	cfg.Inject.File = filepath.Join(t.TempDir(), "missing.txt")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing inject.file")
	}
}

func TestValidate_BadFilterKey(t *testing.T) {
	cfg := validConfig()
	cfg.Filters = []string{"WHAT=.*"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown filter key")
	}
}

func TestValidate_BadFilterPattern(t *testing.T) {
	cfg := validConfig()
	cfg.Filters = []string{"NEIG=["}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-compiling filter pattern")
	}
}

func TestValidate_BadNextHopOverride(t *testing.T) {
	cfg := validConfig()
	cfg.Inject.NextHop = "not-an-ip"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad inject.next_hop")
	}
}

func TestValidate_ExportTopicRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Export.Brokers = []string{"localhost:9092"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for export.brokers without export.topic")
	}
}

func TestValidate_JournalRetentionZero(t *testing.T) {
	cfg := validConfig()
	cfg.Journal.DSN = "postgres://localhost/test"
	cfg.Journal.RetentionDays = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for journal.retention_days = 0")
	}
}

func TestIBGP(t *testing.T) {
	cfg := validConfig()
	if cfg.Session.IBGP() {
		t.Error("65001 vs 65010 should be eBGP")
	}
	cfg.Session.PeerAS = cfg.Session.LocalAS
	if !cfg.Session.IBGP() {
		t.Error("equal AS numbers should be iBGP")
	}
}

func writeMinimalYAML(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	data := `
session:
  local_as: 65001
  local_ip: "10.0.0.1"
  peer_as: 65010
  peer_ip: "10.0.0.2"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeMinimalYAML(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Inject.LocalPref != 500 {
		t.Errorf("default local_pref = %d, want 500", cfg.Inject.LocalPref)
	}
	if cfg.Session.TickIntervalSeconds != 10 {
		t.Errorf("default tick_interval_seconds = %d, want 10", cfg.Session.TickIntervalSeconds)
	}
	if cfg.Journal.Enabled() || cfg.Export.Enabled() {
		t.Error("journal and export must default to disabled")
	}
}

func TestLoad_EnvOverridePeerIP(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("ROUTE_PUSHER_SESSION__PEER_IP", "192.0.2.9")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.PeerIP != "192.0.2.9" {
		t.Errorf("expected peer_ip from env, got %q", cfg.Session.PeerIP)
	}
}

func TestLoad_InvalidSessionFatal(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	data := `
session:
  local_as: 65001
  local_ip: "10.0.0.1"
  peer_as: 70000
  peer_ip: "10.0.0.2"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for peer_as outside 2-octet range")
	}
}
