// Package config loads and validates tenderwatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Identifier store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config captures all job configuration knobs loaded via Viper.
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	Portal  PortalConfig  `mapstructure:"portal"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	Mail    MailConfig    `mapstructure:"mail"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Run     RunConfig     `mapstructure:"run"`
}

// PathsConfig locates the files that survive between runs.
type PathsConfig struct {
	// BaseDir anchors relative state paths. Defaults to the executable's directory.
	BaseDir     string `mapstructure:"base_dir"`
	LogFile     string `mapstructure:"log_file"`
	StatusFile  string `mapstructure:"status_file"`
	IDsFile     string `mapstructure:"ids_file"`
	ResultsFile string `mapstructure:"results_file"`
}

// PortalConfig describes the search page and how to drive it.
type PortalConfig struct {
	SearchURL         string        `mapstructure:"search_url"`
	DetailURLPrefix   string        `mapstructure:"detail_url_prefix"`
	Phrases           []string      `mapstructure:"phrases"`
	SearchInput       string        `mapstructure:"search_input"`
	SubmitButton      string        `mapstructure:"submit_button"`
	ResultsTable      string        `mapstructure:"results_table"`
	Headless          bool          `mapstructure:"headless"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	RenderTimeout     time.Duration `mapstructure:"render_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Settle            time.Duration `mapstructure:"settle"`
	SearchesPerSecond float64       `mapstructure:"searches_per_second"`
}

// StorageConfig selects the identifier backend and the optional artifact archive.
type StorageConfig struct {
	IDsBackend string `mapstructure:"ids_backend"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	GCSPrefix  string `mapstructure:"gcs_prefix"`
}

// DBConfig controls access to Postgres when it backs the identifier store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// MailConfig holds the SMTP relay and account used for notifications.
type MailConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	To            string        `mapstructure:"to"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig points at the node_exporter textfile to write after each run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TracingConfig selects the Cloud Trace project; spans are dropped without one.
type TracingConfig struct {
	ServiceName string `mapstructure:"service_name"`
	ProjectID   string `mapstructure:"project_id"`
}

// RunConfig bounds a whole invocation.
type RunConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load builds a Config from .env files, an optional config file and the environment.
func Load(path string) (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("TENDERWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindMailEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Paths.BaseDir == "" {
		dir, err := executableDir()
		if err != nil {
			return Config{}, err
		}
		cfg.Paths.BaseDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.base_dir", "")
	v.SetDefault("paths.log_file", "eZamowieniaLog.log")
	v.SetDefault("paths.status_file", "status_ezamowienia.json")
	v.SetDefault("paths.ids_file", "existing_ids.txt")
	v.SetDefault("paths.results_file", "results-e-zam.json")

	v.SetDefault("portal.search_url", "https://ezamowienia.gov.pl/mp-client/search/list")
	v.SetDefault("portal.detail_url_prefix", "https://ezamowienia.gov.pl/mp-client/search/list/")
	v.SetDefault("portal.phrases", []string{"Mikrotik", "mtcna", "mtcre", "unifi", "ubiquity", "Linux", "proxmox"})
	v.SetDefault("portal.search_input", "#app-text-0")
	v.SetDefault("portal.submit_button", "button.app-button.btn.btn-secondary.btn-block")
	v.SetDefault("portal.results_table", "tbody")
	v.SetDefault("portal.headless", true)
	v.SetDefault("portal.user_agent", "")
	v.SetDefault("portal.navigation_timeout", "45s")
	v.SetDefault("portal.render_timeout", "20s")
	v.SetDefault("portal.poll_interval", "250ms")
	v.SetDefault("portal.settle", "1s")
	v.SetDefault("portal.searches_per_second", 1.0)

	v.SetDefault("storage.ids_backend", BackendFile)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "tenderwatch")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "known_tenders")
	v.SetDefault("db.max_conns", 2)

	v.SetDefault("mail.enabled", true)
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.to", "")
	v.SetDefault("mail.subject_prefix", "NEW eZamowienia Found")
	v.SetDefault("mail.timeout", "30s")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("tracing.service_name", "tenderwatch")
	v.SetDefault("tracing.project_id", "")
	v.SetDefault("run.timeout", "15m")
}

// bindMailEnv maps the mail account variables shared with other tooling on the host.
func bindMailEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"mail.username": {"TENDERWATCH_MAIL_USERNAME", "GMAIL_USER"},
		"mail.password": {"TENDERWATCH_MAIL_PASSWORD", "APP_PASSWORD"},
		"mail.to":       {"TENDERWATCH_MAIL_TO", "MAIL_TO"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// loadEnvFiles loads .env files in priority order:
// ENV_FILE alone when set, otherwise .env.local then .env.
// Variables already present in the environment win.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Portal.Phrases) == 0 {
		return fmt.Errorf("%w: portal.phrases must not be empty", ErrInvalid)
	}
	u, err := url.Parse(c.Portal.SearchURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: portal.search_url must be an absolute URL", ErrInvalid)
	}
	if c.Portal.SearchInput == "" || c.Portal.SubmitButton == "" || c.Portal.ResultsTable == "" {
		return fmt.Errorf("%w: portal selectors must be set", ErrInvalid)
	}
	if c.Portal.NavigationTimeout <= 0 || c.Portal.RenderTimeout <= 0 {
		return fmt.Errorf("%w: portal timeouts must be > 0", ErrInvalid)
	}
	if c.Portal.PollInterval <= 0 {
		return fmt.Errorf("%w: portal.poll_interval must be > 0", ErrInvalid)
	}
	if c.Portal.SearchesPerSecond < 0 {
		return fmt.Errorf("%w: portal.searches_per_second must be >= 0", ErrInvalid)
	}
	switch c.Storage.IDsBackend {
	case BackendFile:
		if c.Paths.IDsFile == "" {
			return fmt.Errorf("%w: paths.ids_file must be set for the file backend", ErrInvalid)
		}
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("%w: db.dsn must be set for the postgres backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage.ids_backend %q", ErrInvalid, c.Storage.IDsBackend)
	}
	if c.Paths.LogFile == "" || c.Paths.StatusFile == "" || c.Paths.ResultsFile == "" {
		return fmt.Errorf("%w: paths.log_file, paths.status_file and paths.results_file must be set", ErrInvalid)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("%w: pubsub.project_id and pubsub.topic must be set together", ErrInvalid)
	}
	if c.Run.Timeout <= 0 {
		return fmt.Errorf("%w: run.timeout must be > 0", ErrInvalid)
	}
	return nil
}

// StatePath resolves a state file against Paths.BaseDir unless it is absolute.
func (c Config) StatePath(name string) string {
	if filepath.IsAbs(name) || c.Paths.BaseDir == "" {
		return name
	}
	return filepath.Join(c.Paths.BaseDir, name)
}
