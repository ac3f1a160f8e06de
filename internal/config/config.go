package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Publish policies accepted by PDFCAL_PUBLISH_POLICY.
const (
	PolicyAuto    = "auto"
	PolicyConfirm = "confirm"
)

// Common contains the pipeline parameters shared by every binary.
type Common struct {
	DetectorURL      string
	DetectorAPIKey   string
	DetectorTimeout  time.Duration
	CalendarEndpoint string
	CalendarID       string
	CalendarTimeout  time.Duration
	Timezone         string
	Workers          int
	PublishPolicy    string
	Dedupe           bool
	MaxPages         int
	KafkaBrokers     []string
	KafkaTopic       string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr       string
	MaxUploadBytes int64
	CORSOrigin     string
}

// CLI holds configuration for the one-shot command.
type CLI struct {
	Common
	CalendarToken string
}

// MaxWorkers caps the fan-out to respect provider rate limits.
const MaxWorkers = 8

// LoadAPI builds an API config from PDFCAL_CONFIG (optional) and environment variables.
func LoadAPI() (*API, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}

	common, err := loadCommon(src)
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:         *common,
		BindAddr:       src.str("API_BIND_ADDR", "0.0.0.0:8080"),
		MaxUploadBytes: int64(src.int("API_MAX_UPLOAD_BYTES", 20<<20)),
		CORSOrigin:     src.str("API_CORS_ORIGIN", "http://localhost:3000"),
	}

	if c.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("API_MAX_UPLOAD_BYTES must be positive")
	}

	return c, nil
}

// LoadCLI builds a CLI config from PDFCAL_CONFIG (optional) and environment variables.
func LoadCLI() (*CLI, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}

	common, err := loadCommon(src)
	if err != nil {
		return nil, err
	}

	return &CLI{
		Common:        *common,
		CalendarToken: src.str("PDFCAL_CALENDAR_TOKEN", ""),
	}, nil
}

func loadCommon(src *source) (*Common, error) {
	c := &Common{
		DetectorURL:      src.str("PDFCAL_DETECTOR_URL", "http://localhost:8000/detect_date"),
		DetectorAPIKey:   src.str("PDFCAL_DETECTOR_API_KEY", ""),
		DetectorTimeout:  src.duration("PDFCAL_DETECTOR_TIMEOUT", "60s"),
		CalendarEndpoint: src.str("PDFCAL_CALENDAR_ENDPOINT", ""),
		CalendarID:       src.str("PDFCAL_CALENDAR_ID", "primary"),
		CalendarTimeout:  src.duration("PDFCAL_CALENDAR_TIMEOUT", "30s"),
		Timezone:         src.str("PDFCAL_TIMEZONE", ""),
		Workers:          src.int("PDFCAL_WORKERS", 4),
		PublishPolicy:    strings.ToLower(src.str("PDFCAL_PUBLISH_POLICY", PolicyAuto)),
		Dedupe:           src.bool("PDFCAL_DEDUPE", false),
		MaxPages:         src.int("PDFCAL_MAX_PAGES", 0),
		KafkaBrokers:     splitAndTrim(src.str("KAFKA_BROKERS", "")),
		KafkaTopic:       src.str("KAFKA_OUTCOME_TOPIC", "pdfcal_outcomes"),
	}

	if c.Workers <= 0 {
		return nil, fmt.Errorf("PDFCAL_WORKERS must be positive")
	}
	if c.Workers > MaxWorkers {
		c.Workers = MaxWorkers
	}
	if c.MaxPages < 0 {
		return nil, fmt.Errorf("PDFCAL_MAX_PAGES cannot be negative")
	}
	switch c.PublishPolicy {
	case PolicyAuto, PolicyConfirm:
	default:
		return nil, fmt.Errorf("PDFCAL_PUBLISH_POLICY must be %q or %q, got %q", PolicyAuto, PolicyConfirm, c.PublishPolicy)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return nil, fmt.Errorf("PDFCAL_TIMEZONE: %w", err)
		}
	}
	if c.CalendarID == "" {
		return nil, fmt.Errorf("PDFCAL_CALENDAR_ID cannot be empty")
	}

	return c, nil
}

// fileConfig mirrors the optional YAML file named by PDFCAL_CONFIG.
type fileConfig struct {
	Detector struct {
		URL     string `yaml:"url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"detector"`
	Calendar struct {
		Endpoint string `yaml:"endpoint"`
		ID       string `yaml:"id"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"calendar"`
	Pipeline struct {
		Timezone string `yaml:"timezone"`
		Workers  int    `yaml:"workers"`
		Policy   string `yaml:"publish_policy"`
		Dedupe   *bool  `yaml:"dedupe"`
		MaxPages int    `yaml:"max_pages"`
	} `yaml:"pipeline"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	API struct {
		BindAddr       string `yaml:"bind_addr"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
		CORSOrigin     string `yaml:"cors_origin"`
	} `yaml:"api"`
}

// values flattens the file into the environment keys it provides defaults for.
func (f *fileConfig) values() map[string]string {
	m := map[string]string{}
	set := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	setInt := func(key string, v int64) {
		if v != 0 {
			m[key] = strconv.FormatInt(v, 10)
		}
	}

	set("PDFCAL_DETECTOR_URL", f.Detector.URL)
	set("PDFCAL_DETECTOR_API_KEY", f.Detector.APIKey)
	set("PDFCAL_DETECTOR_TIMEOUT", f.Detector.Timeout)
	set("PDFCAL_CALENDAR_ENDPOINT", f.Calendar.Endpoint)
	set("PDFCAL_CALENDAR_ID", f.Calendar.ID)
	set("PDFCAL_CALENDAR_TIMEOUT", f.Calendar.Timeout)
	set("PDFCAL_TIMEZONE", f.Pipeline.Timezone)
	setInt("PDFCAL_WORKERS", int64(f.Pipeline.Workers))
	set("PDFCAL_PUBLISH_POLICY", f.Pipeline.Policy)
	if f.Pipeline.Dedupe != nil {
		m["PDFCAL_DEDUPE"] = strconv.FormatBool(*f.Pipeline.Dedupe)
	}
	setInt("PDFCAL_MAX_PAGES", int64(f.Pipeline.MaxPages))
	set("KAFKA_BROKERS", strings.Join(f.Kafka.Brokers, ","))
	set("KAFKA_OUTCOME_TOPIC", f.Kafka.Topic)
	set("API_BIND_ADDR", f.API.BindAddr)
	setInt("API_MAX_UPLOAD_BYTES", f.API.MaxUploadBytes)
	set("API_CORS_ORIGIN", f.API.CORSOrigin)
	return m
}

// source resolves keys from the environment first, then the config file.
type source struct {
	file map[string]string
}

func newSource() (*source, error) {
	path := strings.TrimSpace(os.Getenv("PDFCAL_CONFIG"))
	if path == "" {
		return &source{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return &source{file: fc.values()}, nil
}

func (s *source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (s *source) str(key, fallback string) string {
	if v, ok := s.lookup(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (s *source) int(key string, fallback int) int {
	if v, ok := s.lookup(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func (s *source) bool(key string, fallback bool) bool {
	if v, ok := s.lookup(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func (s *source) duration(key, fallback string) time.Duration {
	raw := s.str(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
