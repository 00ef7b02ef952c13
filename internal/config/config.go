package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Duration decodes yaml scalars like "30m" or "2s". yaml.v3 has no
// built-in support for time.Duration strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Env        string `yaml:"env"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Redis      `yaml:"redis"`
	Tracking   `yaml:"tracking"`
	Slugs      `yaml:"slugs"`
	Redirects  `yaml:"redirects"`
	Sessions   `yaml:"sessions"`
	Geo        `yaml:"geo"`
}

type HTTPServer struct {
	Port           int      `yaml:"port"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	IdleTimeout    Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int      `yaml:"max_header_bytes"`
	CertFile       string   `yaml:"cert_file"`
	KeyFile        string   `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    Duration(5 * time.Second),
	WriteTimeout:   Duration(10 * time.Second),
	IdleTimeout:    Duration(time.Minute),
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string   `yaml:"user"`
	Password        string   `yaml:"password"`
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	DB              string   `yaml:"db"`
	SSLMode         string   `yaml:"sslmode"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: Duration(5 * time.Minute),
	ConnMaxLifetime: Duration(30 * time.Minute),
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Redis is only required when Sessions.Store is "redis".
type Redis struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

var defaultRedis = Redis{
	Host: "localhost",
	Port: 6379,
}

func (r *Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Tracking carries the visit-analytics and privacy settings.
type Tracking struct {
	Enabled         bool     `yaml:"enabled"`
	FilterBots      bool     `yaml:"filter_bots"`
	AnonymizeIPs    bool     `yaml:"anonymize_ips"`
	ExcludeIPs      []string `yaml:"exclude_ips"`
	RetentionDays   int      `yaml:"retention_days"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
	QueueSize       int      `yaml:"queue_size"`
	Workers         int      `yaml:"workers"`
}

var defaultTracking = Tracking{
	Enabled:         true,
	FilterBots:      true,
	AnonymizeIPs:    false,
	RetentionDays:   0,
	CleanupInterval: Duration(time.Hour),
	QueueSize:       1024,
	Workers:         4,
}

// Slugs controls slug generation and lookup semantics.
type Slugs struct {
	Length        int  `yaml:"length"`
	Lowercase     bool `yaml:"lowercase"`
	Uppercase     bool `yaml:"uppercase"`
	Digits        bool `yaml:"digits"`
	Special       bool `yaml:"special"`
	CaseSensitive bool `yaml:"case_sensitive"`
}

var defaultSlugs = Slugs{
	Length:    7,
	Lowercase: true,
	Digits:    true,
}

type Redirects struct {
	DefaultKind string `yaml:"default_kind"`
}

var defaultRedirects = Redirects{
	DefaultKind: "permanent",
}

type Sessions struct {
	Store string `yaml:"store"`
	// UnlockTTL bounds password unlocks; zero keeps them for the session
	// lifetime.
	UnlockTTL Duration `yaml:"unlock_ttl"`
}

var defaultSessions = Sessions{
	Store: SessionStoreMemory,
}

type Geo struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
}

var defaultGeo = Geo{
	Enabled: false,
	Timeout: Duration(2 * time.Second),
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Tracking = defaultTracking
	cfg.Slugs = defaultSlugs
	cfg.Redirects = defaultRedirects
	cfg.Sessions = defaultSessions
	cfg.Geo = defaultGeo
}
