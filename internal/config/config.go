// Package config loads the TOML configuration shared by the command line
// tools. Keys missing from the file keep their defaults.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/backkem/v2g/pkg/grammar"
	"github.com/backkem/v2g/pkg/message"
	"github.com/backkem/v2g/pkg/secc"
	"github.com/backkem/v2g/pkg/session"
	"github.com/pion/logging"
)

// Defaults for the station and vehicle tools.
const (
	DefaultStationAddr = ":15118"
	DefaultMetricsAddr = ":9115"
	DefaultEVCCID      = "0a0b0c0d0e0f"
)

// Config is the resolved configuration.
type Config struct {
	LogLevel logging.LogLevel

	// Schema resource paths. Empty selects the embedded schema.
	HandshakeSchema string
	MainSchema      string
	Lax             bool

	Station Station
	EV      EV
}

// Station configures the charging station tool.
type Station struct {
	ListenAddr  string
	MetricsAddr string
	MaxSessions int
	Secure      bool
	Offer       secc.Config
}

// EV configures the vehicle tool.
type EV struct {
	StationAddr   string
	EVCCID        []byte
	PaymentOption string
	Stop          message.ChargingSession
	ResumeID      session.ID
}

// fileConfig maps config.toml keys.
type fileConfig struct {
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
	Schemas struct {
		Handshake string `toml:"handshake"`
		Main      string `toml:"main"`
	} `toml:"schemas"`
	Codec struct {
		Lax bool `toml:"lax"`
	} `toml:"codec"`
	Station struct {
		Listen         string   `toml:"listen"`
		MetricsListen  string   `toml:"metrics_listen"`
		MaxSessions    int      `toml:"max_sessions"`
		Secure         bool     `toml:"secure"`
		EVSEID         string   `toml:"evse_id"`
		PaymentOptions []string `toml:"payment_options"`
		ServiceID      uint64   `toml:"service_id"`
		TransferModes  []string `toml:"transfer_modes"`
		FreeService    bool     `toml:"free_service"`
	} `toml:"station"`
	EV struct {
		Station       string `toml:"station"`
		EVCCID        string `toml:"evcc_id"`
		PaymentOption string `toml:"payment_option"`
		Stop          string `toml:"stop"`
		ResumeID      string `toml:"resume_id"`
	} `toml:"ev"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	evccID, _ := hex.DecodeString(DefaultEVCCID)
	return Config{
		LogLevel: logging.LogLevelInfo,
		Station: Station{
			ListenAddr:  DefaultStationAddr,
			MetricsAddr: DefaultMetricsAddr,
			MaxSessions: session.DefaultMaxSessions,
		},
		EV: EV{
			StationAddr:   "127.0.0.1" + DefaultStationAddr,
			EVCCID:        evccID,
			PaymentOption: message.PaymentExternalPayment,
			Stop:          message.ChargingSessionTerminate,
		},
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("log", "level") {
		level, err := ParseLevel(raw.Log.Level)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("schemas", "handshake") {
		cfg.HandshakeSchema = strings.TrimSpace(raw.Schemas.Handshake)
	}
	if meta.IsDefined("schemas", "main") {
		cfg.MainSchema = strings.TrimSpace(raw.Schemas.Main)
	}
	if meta.IsDefined("codec", "lax") {
		cfg.Lax = raw.Codec.Lax
	}

	st := &cfg.Station
	if meta.IsDefined("station", "listen") {
		st.ListenAddr = strings.TrimSpace(raw.Station.Listen)
	}
	if meta.IsDefined("station", "metrics_listen") {
		st.MetricsAddr = strings.TrimSpace(raw.Station.MetricsListen)
	}
	if meta.IsDefined("station", "max_sessions") {
		if raw.Station.MaxSessions <= 0 {
			return Config{}, fmt.Errorf("load config: station.max_sessions must be positive")
		}
		st.MaxSessions = raw.Station.MaxSessions
	}
	if meta.IsDefined("station", "secure") {
		st.Secure = raw.Station.Secure
	}
	if meta.IsDefined("station", "evse_id") {
		st.Offer.EVSEID = strings.TrimSpace(raw.Station.EVSEID)
	}
	if meta.IsDefined("station", "payment_options") {
		st.Offer.PaymentOptions = raw.Station.PaymentOptions
	}
	if meta.IsDefined("station", "service_id") {
		st.Offer.ServiceID = raw.Station.ServiceID
	}
	if meta.IsDefined("station", "transfer_modes") {
		st.Offer.TransferModes = raw.Station.TransferModes
	}
	if meta.IsDefined("station", "free_service") {
		st.Offer.FreeService = raw.Station.FreeService
	}

	ev := &cfg.EV
	if meta.IsDefined("ev", "station") {
		ev.StationAddr = strings.TrimSpace(raw.EV.Station)
	}
	if meta.IsDefined("ev", "evcc_id") {
		id, err := hex.DecodeString(strings.TrimSpace(raw.EV.EVCCID))
		if err != nil {
			return Config{}, fmt.Errorf("load config: ev.evcc_id: %w", err)
		}
		ev.EVCCID = id
	}
	if meta.IsDefined("ev", "payment_option") {
		ev.PaymentOption = strings.TrimSpace(raw.EV.PaymentOption)
	}
	if meta.IsDefined("ev", "stop") {
		stop, err := ParseStop(raw.EV.Stop)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		ev.Stop = stop
	}
	if meta.IsDefined("ev", "resume_id") {
		id, err := ParseSessionID(raw.EV.ResumeID)
		if err != nil {
			return Config{}, fmt.Errorf("load config: ev.resume_id: %w", err)
		}
		ev.ResumeID = id
	}
	return cfg, nil
}

// ParseLevel parses a pion log level name.
func ParseLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// ParseStop parses how a vehicle ends its session.
func ParseStop(s string) (message.ChargingSession, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "terminate":
		return message.ChargingSessionTerminate, nil
	case "pause":
		return message.ChargingSessionPause, nil
	default:
		return "", fmt.Errorf("unknown stop mode %q", s)
	}
}

// ParseSessionID parses a hex session identifier. Empty means none.
func ParseSessionID(s string) (session.ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return session.ID{}, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return session.ID{}, err
	}
	return session.IDFromBytes(b)
}

// LoggerFactory returns a pion logger factory at the configured level.
func (c Config) LoggerFactory() logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.DefaultLogLevel = c.LogLevel
	return f
}

// Options returns the codec grammar options.
func (c Config) Options() grammar.Options {
	if c.Lax {
		return grammar.OptionLax
	}
	return grammar.DefaultOptions
}

// Resolver returns the schemas to use: the embedded ones unless both
// paths are set.
func (c Config) Resolver() (*grammar.Resolver, error) {
	if c.HandshakeSchema == "" && c.MainSchema == "" {
		return grammar.Default()
	}
	if c.HandshakeSchema == "" || c.MainSchema == "" {
		return nil, fmt.Errorf("schemas: both handshake and main must be set")
	}
	hs, err := os.ReadFile(c.HandshakeSchema)
	if err != nil {
		return nil, fmt.Errorf("schemas: %w", err)
	}
	me, err := os.ReadFile(c.MainSchema)
	if err != nil {
		return nil, fmt.Errorf("schemas: %w", err)
	}
	return grammar.LoadResolver(hs, me)
}
