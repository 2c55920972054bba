package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/route-beacon/route-pusher/internal/dump"
	"github.com/route-beacon/route-pusher/internal/filter"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

type Config struct {
	Service ServiceConfig `koanf:"service"`
	Session SessionConfig `koanf:"session"`
	Inject  InjectConfig  `koanf:"inject"`
	Filters []string      `koanf:"filters"`
	Journal JournalConfig `koanf:"journal"`
	Export  ExportConfig  `koanf:"export"`
}

type ServiceConfig struct {
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	OutputFile             string `koanf:"output_file"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

type SessionConfig struct {
	LocalAS             uint32 `koanf:"local_as"`
	LocalIP             string `koanf:"local_ip"`
	PeerAS              uint32 `koanf:"peer_as"`
	PeerIP              string `koanf:"peer_ip"`
	TickIntervalSeconds int    `koanf:"tick_interval_seconds"`
}

// IBGP reports the derived peer type: true when both sides share the same
// AS number. Derived once from configuration; never changes at runtime.
func (s *SessionConfig) IBGP() bool {
	return s.LocalAS == s.PeerAS
}

type InjectConfig struct {
	File        string `koanf:"file"`
	DryRun      bool   `koanf:"dry_run"`
	PrefixLimit int    `koanf:"prefix_limit"`
	LocalPref   uint32 `koanf:"local_pref"`
	NextHopSelf bool   `koanf:"next_hop_self"`
	NextHop     string `koanf:"next_hop"`
}

type JournalConfig struct {
	DSN           string `koanf:"dsn"`
	MaxConns      int32  `koanf:"max_conns"`
	MinConns      int32  `koanf:"min_conns"`
	StoreRaw      bool   `koanf:"store_raw"`
	CompressRaw   bool   `koanf:"compress_raw"`
	RetentionDays int    `koanf:"retention_days"`
}

// Enabled reports whether the journal sink is configured.
func (j *JournalConfig) Enabled() bool { return j.DSN != "" }

type ExportConfig struct {
	Brokers  []string   `koanf:"brokers"`
	Topic    string     `koanf:"topic"`
	ClientID string     `koanf:"client_id"`
	TLS      TLSConfig  `koanf:"tls"`
	SASL     SASLConfig `koanf:"sasl"`
}

// Enabled reports whether the Kafka export sink is configured.
func (e *ExportConfig) Enabled() bool { return len(e.Brokers) > 0 }

type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

type SASLConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Mechanism string `koanf:"mechanism"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML file first.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: ROUTE_PUSHER_SESSION__PEER_IP → session.peer_ip
	if err := k.Load(env.Provider("ROUTE_PUSHER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ROUTE_PUSHER_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Session: SessionConfig{
			TickIntervalSeconds: 10,
		},
		Inject: InjectConfig{
			LocalPref: 500,
		},
		Journal: JournalConfig{
			MaxConns:      10,
			MinConns:      1,
			CompressRaw:   true,
			RetentionDays: 30,
		},
		Export: ExportConfig{
			ClientID: "route-pusher",
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Split comma-separated env strings for slice fields.
	if len(cfg.Export.Brokers) == 1 && strings.Contains(cfg.Export.Brokers[0], ",") {
		cfg.Export.Brokers = strings.Split(cfg.Export.Brokers[0], ",")
	}
	if len(cfg.Filters) == 1 && strings.Contains(cfg.Filters[0], ",") {
		cfg.Filters = strings.Split(cfg.Filters[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the full configuration eagerly: every failure here is
// fatal before any connection attempt.
func (c *Config) Validate() error {
	if !dump.ValidASNumber(c.Session.LocalAS) {
		return fmt.Errorf("config: session.local_as %d is not a valid AS number", c.Session.LocalAS)
	}
	if !dump.ValidASNumber(c.Session.PeerAS) {
		return fmt.Errorf("config: session.peer_as %d is not a valid AS number", c.Session.PeerAS)
	}
	if !dump.ValidIPv4(c.Session.LocalIP) {
		return fmt.Errorf("config: session.local_ip %q is not a valid IPv4 address", c.Session.LocalIP)
	}
	if !dump.ValidIPv4(c.Session.PeerIP) {
		return fmt.Errorf("config: session.peer_ip %q is not a valid IPv4 address", c.Session.PeerIP)
	}
	if c.Session.TickIntervalSeconds <= 0 {
		return fmt.Errorf("config: session.tick_interval_seconds must be > 0 (got %d)", c.Session.TickIntervalSeconds)
	}

	if c.Inject.DryRun && c.Inject.File == "" {
		return fmt.Errorf("config: inject.dry_run requires inject.file")
	}
	if c.Inject.File != "" {
		rc, err := dump.Open(c.Inject.File)
		if err != nil {
			return fmt.Errorf("config: inject.file is not readable: %w", err)
		}
		rc.Close()
	}
	if c.Inject.PrefixLimit < 0 {
		return fmt.Errorf("config: inject.prefix_limit must be >= 0 (got %d)", c.Inject.PrefixLimit)
	}
	if c.Inject.NextHop != "" && !dump.ValidIPv4(c.Inject.NextHop) {
		return fmt.Errorf("config: inject.next_hop %q is not a valid IPv4 address", c.Inject.NextHop)
	}

	// Filter entries must name known keys and compile.
	if _, err := filter.New(c.Filters); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	if c.Service.OutputFile != "" {
		f, err := os.OpenFile(c.Service.OutputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("config: service.output_file is not writable: %w", err)
		}
		f.Close()
	}

	if c.Journal.Enabled() {
		if c.Journal.MaxConns <= 0 {
			return fmt.Errorf("config: journal.max_conns must be > 0 (got %d)", c.Journal.MaxConns)
		}
		if c.Journal.MinConns < 0 {
			return fmt.Errorf("config: journal.min_conns must be >= 0 (got %d)", c.Journal.MinConns)
		}
		if c.Journal.RetentionDays <= 0 {
			return fmt.Errorf("config: journal.retention_days must be > 0 (got %d)", c.Journal.RetentionDays)
		}
	}
	if c.Export.Enabled() && c.Export.Topic == "" {
		return fmt.Errorf("config: export.topic is required when export.brokers is set")
	}

	return nil
}

// BuildFilters compiles the configured filter entries. Load has already
// validated them; an error here means the config was mutated after load.
func (c *Config) BuildFilters() (*filter.Set, error) {
	return filter.New(c.Filters)
}

// BuildTLSConfig creates a *tls.Config from the export TLS settings. Returns nil if TLS is disabled.
func (e *ExportConfig) BuildTLSConfig() (*tls.Config, error) {
	if !e.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if e.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(e.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	if e.TLS.CertFile != "" && e.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(e.TLS.CertFile, e.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// BuildSASLMechanism creates a SASL mechanism from the export SASL settings. Returns nil if SASL is disabled.
func (e *ExportConfig) BuildSASLMechanism() sasl.Mechanism {
	if !e.SASL.Enabled {
		return nil
	}
	switch strings.ToUpper(e.SASL.Mechanism) {
	case "PLAIN":
		return plain.Auth{User: e.SASL.Username, Pass: e.SASL.Password}.AsMechanism()
	default:
		return nil
	}
}
