// Package config loads parcelview.toml, environment overrides and the .env
// secrets file into one Config.
//
// Precedence, highest first: PARCELVIEW_* environment variables (which .env
// may supply), the TOML file, built-in defaults. Credentials and the dataset
// key are only ever read from the environment.
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"parcelview/internal/errors"
)

// FileName is the config file searched for when no path is given.
const FileName = "parcelview.toml"

const envPrefix = "PARCELVIEW"

// DataConfig locates the encrypted dataset.
type DataConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// ScaleConfig selects the attribute and normalization of the color scale.
type ScaleConfig struct {
	Mode      string `mapstructure:"mode" toml:"mode"`
	Attribute string `mapstructure:"attribute" toml:"attribute"`
}

// ViewConfig holds the map zoom levels before and after a selection.
type ViewConfig struct {
	OverviewZoom int `mapstructure:"overview_zoom" toml:"overview_zoom"`
	DetailZoom   int `mapstructure:"detail_zoom" toml:"detail_zoom"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr      string `mapstructure:"addr" toml:"addr"`
	LoginRate int    `mapstructure:"login_rate" toml:"login_rate"` // attempts per minute per IP
}

// SessionConfig picks the session backend and how long sessions live.
type SessionConfig struct {
	Backend string `mapstructure:"backend" toml:"backend"` // memory or redis
	TTL     string `mapstructure:"ttl" toml:"ttl"`
}

// RedisConfig is the Redis session backend connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" toml:"addr"`
	Password string `mapstructure:"password" toml:"-"`
	DB       int    `mapstructure:"db" toml:"db"`
}

// OracleConfig is the optional Oracle sink for exported leads.
type OracleConfig struct {
	Host           string `mapstructure:"host" toml:"host"`
	Port           string `mapstructure:"port" toml:"port"`
	Service        string `mapstructure:"service" toml:"service"`
	Username       string `mapstructure:"username" toml:"-"`
	Password       string `mapstructure:"password" toml:"-"`
	WalletLocation string `mapstructure:"wallet_location" toml:"wallet_location"`
	Table          string `mapstructure:"table" toml:"table"`
}

// Tile is an extra map layer drawn over OpenStreetMap.
type Tile struct {
	Name        string `mapstructure:"name" toml:"name" json:"name"`
	URL         string `mapstructure:"url" toml:"url" json:"url"`
	Attribution string `mapstructure:"attribution" toml:"attribution" json:"attribution"`
}

// Secrets come from the environment only and never reach the config file.
type Secrets struct {
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

// Config is the fully resolved configuration.
type Config struct {
	Data    DataConfig    `mapstructure:"data" toml:"data"`
	Scale   ScaleConfig   `mapstructure:"scale" toml:"scale"`
	View    ViewConfig    `mapstructure:"view" toml:"view"`
	Server  ServerConfig  `mapstructure:"server" toml:"server"`
	Session SessionConfig `mapstructure:"session" toml:"session"`
	Redis   RedisConfig   `mapstructure:"redis" toml:"redis"`
	Oracle  OracleConfig  `mapstructure:"oracle" toml:"oracle"`
	Tiles   []Tile        `mapstructure:"tiles" toml:"tiles"`
	Secrets Secrets       `mapstructure:"auth" toml:"-"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" toml:"-"`
}

// DefaultTiles are the Google hybrid and terrain layers.
func DefaultTiles() []Tile {
	return []Tile{
		{Name: "Satellite", URL: "https://mt0.google.com/vt/lyrs=y&hl=en&x={x}&y={y}&z={z}", Attribution: "Google Hybrid"},
		{Name: "Terrain Map", URL: "https://mt0.google.com/vt/lyrs=p&hl=en&x={x}&y={y}&z={z}", Attribution: "Terrain"},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Data:    DataConfig{Path: "parcel_polygon_stat.dat"},
		Scale:   ScaleConfig{Mode: "log", Attribute: "variance_acres"},
		View:    ViewConfig{OverviewZoom: 13, DetailZoom: 18},
		Server:  ServerConfig{Addr: ":8501", LoginRate: 10},
		Session: SessionConfig{Backend: "memory", TTL: "12h"},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Oracle:  OracleConfig{Port: "1522", Table: "PARCEL_LEADS"},
		Tiles:   DefaultTiles(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data.path", d.Data.Path)
	v.SetDefault("scale.mode", d.Scale.Mode)
	v.SetDefault("scale.attribute", d.Scale.Attribute)
	v.SetDefault("view.overview_zoom", d.View.OverviewZoom)
	v.SetDefault("view.detail_zoom", d.View.DetailZoom)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.login_rate", d.Server.LoginRate)
	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("oracle.host", "")
	v.SetDefault("oracle.port", d.Oracle.Port)
	v.SetDefault("oracle.service", "")
	v.SetDefault("oracle.username", "")
	v.SetDefault("oracle.password", "")
	v.SetDefault("oracle.wallet_location", "")
	v.SetDefault("oracle.table", d.Oracle.Table)
	v.SetDefault("tiles", d.Tiles)
}

// bindEnv maps keys whose variable names do not follow the PARCELVIEW_
// prefix rule. The Oracle keys also honor the DB_* names the lead database
// has always used.
func bindEnv(v *viper.Viper) error {
	binds := [][]string{
		{"auth.username", envPrefix + "_USERNAME"},
		{"auth.password", envPrefix + "_PASSWORD"},
		{"auth.encryption_key", envPrefix + "_ENCRYPTION_KEY"},
		{"oracle.host", envPrefix + "_ORACLE_HOST", "DB_HOST"},
		{"oracle.port", envPrefix + "_ORACLE_PORT", "DB_PORT"},
		{"oracle.service", envPrefix + "_ORACLE_SERVICE", "DB_SERVICE"},
		{"oracle.username", envPrefix + "_ORACLE_USERNAME", "DB_USERNAME"},
		{"oracle.password", envPrefix + "_ORACLE_PASSWORD", "DB_PASSWORD"},
		{"oracle.wallet_location", envPrefix + "_ORACLE_WALLET_LOCATION", "DB_WALLET_LOCATION"},
	}
	for _, b := range binds {
		if err := v.BindEnv(b...); err != nil {
			return err
		}
	}
	return nil
}

// LoadDotEnv loads .env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrap(errors.ErrCodeConfig, err, "load %s", p)
		}
	}
	return nil
}

// Load resolves the configuration. path may be empty, in which case
// parcelview.toml is searched for in the working directory and in
// $XDG_CONFIG_HOME/parcelview; not finding one is fine.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "bind environment")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "parcelview"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.ErrCodeConfig, err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "decode config")
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Scale.Mode) {
	case "log", "logarithmic", "linear":
	default:
		return errors.New(errors.ErrCodeConfig, "scale.mode must be log or linear, got %q", c.Scale.Mode)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return errors.New(errors.ErrCodeConfig, "session.backend must be memory or redis, got %q", c.Session.Backend)
	}
	if c.View.OverviewZoom < 0 || c.View.DetailZoom < c.View.OverviewZoom {
		return errors.New(errors.ErrCodeConfig, "view zoom levels out of order (overview %d, detail %d)",
			c.View.OverviewZoom, c.View.DetailZoom)
	}
	if _, err := time.ParseDuration(c.Session.TTL); err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "session.ttl")
	}
	if c.Data.Path == "" {
		return errors.New(errors.ErrCodeConfig, "data.path is empty")
	}
	for i, t := range c.Tiles {
		if t.Name == "" || t.URL == "" {
			return errors.New(errors.ErrCodeConfig, "tiles[%d] needs a name and a url", i)
		}
	}
	return nil
}

// SessionTTL returns session.ttl as a duration.
func (c *Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Session.TTL)
	return d
}

// RequireSecrets checks the environment-only values a surface needs before
// it can log a user in and decrypt the dataset.
func (c *Config) RequireSecrets() error {
	var missing []string
	if c.Secrets.Username == "" {
		missing = append(missing, envPrefix+"_USERNAME")
	}
	if c.Secrets.Password == "" {
		missing = append(missing, envPrefix+"_PASSWORD")
	}
	if c.Secrets.EncryptionKey == "" {
		missing = append(missing, envPrefix+"_ENCRYPTION_KEY")
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrCodeConfig, "missing environment: %s", strings.Join(missing, ", "))
	}
	return nil
}

const fileHeader = `# parcelview configuration
#
# Every key can be overridden with an environment variable: PARCELVIEW_ plus
# the upper-cased key path, e.g. PARCELVIEW_SCALE_MODE=linear.
#
# Credentials and the dataset key are read from the environment (or .env):
#   PARCELVIEW_USERNAME, PARCELVIEW_PASSWORD, PARCELVIEW_ENCRYPTION_KEY
# Oracle credentials: PARCELVIEW_ORACLE_USERNAME/PASSWORD or DB_USERNAME/DB_PASSWORD.

`

// WriteDefault writes the commented default configuration to w.
func WriteDefault(w io.Writer) error {
	if _, err := io.WriteString(w, fileHeader); err != nil {
		return err
	}
	enc := toml.NewEncoder(w)
	enc.Indent = ""
	if err := enc.Encode(Default()); err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "encode default config")
	}
	return nil
}

// Init writes the default configuration to path, refusing to overwrite an
// existing file unless force is set.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.New(errors.ErrCodeConfig, "%s already exists (use --force to overwrite)", path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "create %s", path)
	}
	if err := WriteDefault(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
