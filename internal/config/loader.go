package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load builds a Config from the process environment, fills defaults from
// struct tags, and validates the result. Every unset required variable and
// unparsable value is reported, not just the first.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}

	b := binder{lookup: lookup}
	b.bind(reflect.ValueOf(cfg).Elem())
	if err := errors.Join(b.errs...); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// binder walks a config struct and assigns each `env`-tagged field.
type binder struct {
	lookup func(string) (string, bool)
	errs   []error
}

var durationType = reflect.TypeOf(time.Duration(0))

func (b *binder) bind(v reflect.Value) {
	t := v.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			b.bind(fv)
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := b.value(name, sf.Tag.Get("envAlt"))
		if !ok {
			if sf.Tag.Get("required") == "true" {
				b.errs = append(b.errs, fmt.Errorf("%s is required but not set", name))
				continue
			}
			raw = sf.Tag.Get("default")
		}
		if raw == "" {
			continue
		}
		if err := assign(fv, raw); err != nil {
			b.errs = append(b.errs, fmt.Errorf("%s=%q: %w", name, raw, err))
		}
	}
}

// value returns the first non-empty variable among name and its
// comma-separated alternates.
func (b *binder) value(name, alts string) (string, bool) {
	names := []string{name}
	if alts != "" {
		names = append(names, strings.Split(alts, ",")...)
	}
	for _, n := range names {
		if s, ok := b.lookup(strings.TrimSpace(n)); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func assign(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("not a duration: %w", err)
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("not an integer: %w", err)
		}
		fv.SetInt(n)
	case reflect.Bool:
		ok, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("not a boolean: %w", err)
		}
		fv.SetBool(ok)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", fv.Type().Elem().Kind())
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		fv.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported kind %s", fv.Kind())
	}
	return nil
}

// problems accumulates validation failures.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	var p problems

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	p.check(c.Database.URL != "", "DATABASE_URL is required")
	p.check(c.Database.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(c.Database.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	p.check(c.Database.MaxConns >= c.Database.MinConns,
		"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)

	p.check(oneOf(c.Store.Backend, BackendPostgres, BackendGorm),
		"STORE_BACKEND (%q) must be one of: postgres, gorm", c.Store.Backend)

	p.check(strings.TrimSpace(c.Import.IDPrefix) != "", "IMPORT_ID_PREFIX must not be empty")
	p.check(c.Import.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive")
	p.check(c.Import.Timeout > 0, "IMPORT_TIMEOUT must be positive")
	p.check(c.Import.WriteWait > 0, "IMPORT_WRITE_WAIT must be positive")

	p.check(c.Webhook.MaxBodySize > 0, "WEBHOOK_MAX_BODY_SIZE must be positive")

	p.check(oneOf(c.Logging.Level, "debug", "info", "warn", "error"),
		"LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	p.check(oneOf(c.Logging.Format, "text", "json"),
		"LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)

	p.check(!c.Metrics.Enabled || c.Metrics.Namespace != "",
		"METRICS_NAMESPACE must not be empty when metrics are enabled")

	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("%d invalid setting(s):\n  - %s", len(p), strings.Join(p, "\n  - "))
}

// String renders the config for startup logs with credentials masked.
func (c *Config) String() string {
	mask := func(s string) string {
		if s == "" {
			return "[unset]"
		}
		return "[MASKED]"
	}

	return fmt.Sprintf("Config{Server: %s (shutdown %s), Database: {URL: %s, Conns: %d-%d}, "+
		"Store: %s, Import: {Prefix: %q, MaxFileSize: %d, Timeout: %s, WriteWait: %s}, "+
		"Webhook: {WooCommerceSecret: %s}, Logging: %s/%s, Metrics: %t}",
		c.Server.Addr(), c.Server.ShutdownTimeout,
		mask(c.Database.URL), c.Database.MinConns, c.Database.MaxConns,
		c.Store.Backend,
		c.Import.IDPrefix, c.Import.MaxFileSize, c.Import.Timeout, c.Import.WriteWait,
		mask(c.Webhook.WooCommerceSecret),
		c.Logging.Level, c.Logging.Format, c.Metrics.Enabled)
}
