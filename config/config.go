// Package config holds the settings for a smoke test run and loads them from a file and
// from the environment. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aicodereview/page-smoke-tests/browser"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCommandTimeout  = time.Second * 4
	DefaultRequestTimeout  = time.Second * 30
	DefaultPageLoadTimeout = time.Second * 60
	DefaultPollInterval    = time.Millisecond * 50
)

// Environment variables that override the config file.
const (
	EnvBaseURL         = "SMOKE_BASE_URL"
	EnvBrowser         = "SMOKE_BROWSER"
	EnvChromeBin       = "SMOKE_CHROME_BIN"
	EnvCommandTimeout  = "SMOKE_COMMAND_TIMEOUT"
	EnvRequestTimeout  = "SMOKE_REQUEST_TIMEOUT"
	EnvPageLoadTimeout = "SMOKE_PAGE_LOAD_TIMEOUT"
)

type Config struct {
	// BaseURL is the root address that relative paths in the tests are resolved against.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// Browser is the driver name, see browser.Kinds.
	Browser     string `yaml:"browser" toml:"browser"`
	ChromeBin   string `yaml:"chrome_bin" toml:"chrome_bin"`
	ShowBrowser bool   `yaml:"show_browser" toml:"show_browser"`

	// CommandTimeout bounds how long an assertion about page content keeps polling.
	CommandTimeout time.Duration `yaml:"command_timeout" toml:"command_timeout"`
	// RequestTimeout bounds a single HTTP request made outside of page navigation.
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout"`
	// PageLoadTimeout bounds navigation.
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" toml:"page_load_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval" toml:"poll_interval"`

	// AwaitTarget, if positive, makes the runner wait up to this long for the target to
	// start answering before any test runs.
	AwaitTarget time.Duration `yaml:"await_target" toml:"await_target"`
}

func Default() Config {
	return Config{
		Browser:         browser.KindStatic,
		CommandTimeout:  DefaultCommandTimeout,
		RequestTimeout:  DefaultRequestTimeout,
		PageLoadTimeout: DefaultPageLoadTimeout,
		PollInterval:    DefaultPollInterval,
	}
}

// LoadFile reads a YAML or TOML file, chosen by extension, on top of the current values.
// Settings absent from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("error decoding config file %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("error decoding config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config file %s must have a .yaml, .yml, or .toml extension", path)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables. lookup is normally
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvBrowser); ok {
		c.Browser = v
	}
	if v, ok := lookup(EnvChromeBin); ok {
		c.ChromeBin = v
	}
	durations := []struct {
		name   string
		target *time.Duration
	}{
		{EnvCommandTimeout, &c.CommandTimeout},
		{EnvRequestTimeout, &c.RequestTimeout},
		{EnvPageLoadTimeout, &c.PageLoadTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", d.name, err)
		}
		*d.target = parsed
	}
	return nil
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required (use -url or %s)", EnvBaseURL)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL must be an absolute http or https URL, got %q", c.BaseURL)
	}
	validBrowser := false
	for _, k := range browser.Kinds {
		if c.Browser == k {
			validBrowser = true
		}
	}
	if !validBrowser {
		return fmt.Errorf("unknown browser %q (must be one of: %s)", c.Browser, strings.Join(browser.Kinds, ", "))
	}
	if c.CommandTimeout <= 0 || c.RequestTimeout <= 0 || c.PageLoadTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// ResolveURL resolves a path used in a test against the base URL. The base URL's own path
// is kept as a prefix, so with a base URL of http://host/app, "/" refers to
// http://host/app/. An absolute URL is returned unchanged.
func (c Config) ResolveURL(path string) (string, error) {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path, nil
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String(), nil
}
