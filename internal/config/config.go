// Package config carga la configuración del gateway desde YAML con
// overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider es la configuración inmutable de un proveedor.
type Provider struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	Scope          string `yaml:"scope"`
	// LoginPath y CallbackPath permiten mover los endpoints del default
	// /{name}/login y /{name}/process.
	LoginPath    string `yaml:"login_path"`
	CallbackPath string `yaml:"callback_path"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// BaseURL pública del gateway; de acá salen las callback URLs que se
		// registran con cada proveedor.
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`

	// Endpoint del caller que recibe el POST con el delivery token.
	Endpoint string `yaml:"endpoint"`

	Delivery struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"delivery"`

	Session struct {
		Secret     string `yaml:"secret"`
		CookieName string `yaml:"cookie_name"`
		Secure     bool   `yaml:"secure"`
	} `yaml:"session"`

	Store struct {
		Driver string `yaml:"driver"` // memory | redis | postgres
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
		Memory struct {
			PurgeInterval time.Duration `yaml:"purge_interval"`
		} `yaml:"memory"`
	} `yaml:"store"`

	Providers map[string]Provider `yaml:"providers"`
}

// Load lee el YAML, aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Delivery.TTL == 0 {
		c.Delivery.TTL = 300 * time.Second
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "authgate"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.Memory.PurgeInterval == 0 {
		c.Store.Memory.PurgeInterval = time.Minute
	}
	if c.Providers == nil {
		c.Providers = map[string]Provider{}
	}

	c.applyEnvOverrides()

	// Guardia: en prod la cookie siempre viaja Secure.
	if strings.EqualFold(c.App.Env, "prod") {
		c.Session.Secure = true
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnvOverrides pisa valores puntuales con variables de entorno. Las
// credenciales por proveedor usan AUTHGATE_PROVIDER_<NAME>_KEY / _SECRET.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("AUTHGATE_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("AUTHGATE_BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := getEnvStr("AUTHGATE_ENDPOINT"); ok {
		c.Endpoint = v
	}
	if v, ok := getEnvStr("AUTHGATE_SESSION_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := getEnvStr("AUTHGATE_STORE_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := getEnvStr("AUTHGATE_REDIS_ADDR"); ok {
		c.Store.Redis.Addr = v
	}
	if v, ok := getEnvStr("AUTHGATE_REDIS_PASSWORD"); ok {
		c.Store.Redis.Password = v
	}
	if v, ok := getEnvInt("AUTHGATE_REDIS_DB"); ok {
		c.Store.Redis.DB = v
	}
	if v, ok := getEnvStr("AUTHGATE_POSTGRES_DSN"); ok {
		c.Store.Postgres.DSN = v
	}
	if v, ok := getEnvDur("AUTHGATE_DELIVERY_TTL"); ok {
		c.Delivery.TTL = v
	}

	for name, p := range c.Providers {
		envName := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if v, ok := getEnvStr("AUTHGATE_PROVIDER_" + envName + "_KEY"); ok {
			p.ConsumerKey = v
		}
		if v, ok := getEnvStr("AUTHGATE_PROVIDER_" + envName + "_SECRET"); ok {
			p.ConsumerSecret = v
		}
		c.Providers[name] = p
	}
}

// Validate falla rápido en errores de configuración: se detectan al
// arranque, nunca en mitad de un login.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return fmt.Errorf("config: server.base_url is required")
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		return fmt.Errorf("config: session.secret is required")
	}
	switch c.Store.Driver {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("config: store.redis.addr is required for the redis driver")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("config: store.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// LoginPath devuelve el path de login del proveedor (configurado o default).
func (p Provider) LoginPathOr(name string) string {
	if p.LoginPath != "" {
		return p.LoginPath
	}
	return "/" + name + "/login"
}

// CallbackPathOr devuelve el path de callback (configurado o default).
func (p Provider) CallbackPathOr(name string) string {
	if p.CallbackPath != "" {
		return p.CallbackPath
	}
	return "/" + name + "/process"
}

// CallbackURL arma la URL absoluta de callback para registrar con el
// proveedor.
func (c *Config) CallbackURL(name string) string {
	base := strings.TrimRight(c.Server.BaseURL, "/")
	return base + c.Providers[name].CallbackPathOr(name)
}

// ProviderNames lista los proveedores configurados en orden estable.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for n := range c.Providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
