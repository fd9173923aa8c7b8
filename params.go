package main

import (
	"flag"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/aicodereview/page-smoke-tests/browser"
	"github.com/aicodereview/page-smoke-tests/config"
	"github.com/aicodereview/page-smoke-tests/framework"

	"github.com/alessio/shellescape"
)

type commandParams struct {
	baseURL        string
	configFile     string
	browserKind    string
	chromeBin      string
	showBrowser    bool
	commandTimeout time.Duration
	requestTimeout time.Duration
	awaitTarget    time.Duration
	filters        framework.RegexFilters
	debug          bool
	debugAll       bool
	jsonReport     string
	noColor        bool

	// set records which flags were given explicitly, so that only those override the
	// config file and environment.
	set map[string]bool
}

// Read parses the command line. Errors and usage go to stderr.
func (c *commandParams) Read(args []string, stderr io.Writer) bool {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&c.baseURL, "url", "", "base URL of the application under test")
	fs.StringVar(&c.configFile, "config", "", "YAML or TOML file to read settings from")
	fs.StringVar(&c.browserKind, "browser", browser.KindStatic,
		"browser driver to use ("+strings.Join(browser.Kinds, ", ")+")")
	fs.StringVar(&c.chromeBin, "chrome-bin", "", "path to the Chromium executable for the chrome driver")
	fs.BoolVar(&c.showBrowser, "show-browser", false, "run the chrome driver with a visible window")
	fs.DurationVar(&c.commandTimeout, "timeout", config.DefaultCommandTimeout,
		"how long to keep retrying an assertion about page content")
	fs.DurationVar(&c.requestTimeout, "request-timeout", config.DefaultRequestTimeout, "timeout for a single HTTP request")
	fs.DurationVar(&c.awaitTarget, "await", 0, "wait up to this long for the target to respond before running tests")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run, with / separating levels as in go test -run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&c.jsonReport, "json", "", "also write the results as JSON to this file")
	fs.BoolVar(&c.noColor, "no-color", false, "disable colored output")

	if err := fs.Parse(args[1:]); err != nil {
		if err != flag.ErrHelp {
			fs.Usage()
		}
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return false
	}
	c.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { c.set[f.Name] = true })
	return true
}

// resolveConfig builds the effective configuration: defaults, then the config file, then
// the environment, then any flags that were given explicitly.
func (c *commandParams) resolveConfig(lookupEnv func(string) (string, bool)) (config.Config, error) {
	cfg := config.Default()
	if c.configFile != "" {
		if err := cfg.LoadFile(c.configFile); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return cfg, err
	}
	if c.set["url"] {
		cfg.BaseURL = c.baseURL
	}
	if c.set["browser"] {
		cfg.Browser = c.browserKind
	}
	if c.set["chrome-bin"] {
		cfg.ChromeBin = c.chromeBin
	}
	if c.set["show-browser"] {
		cfg.ShowBrowser = c.showBrowser
	}
	if c.set["timeout"] {
		cfg.CommandTimeout = c.commandTimeout
	}
	if c.set["request-timeout"] {
		cfg.RequestTimeout = c.requestTimeout
	}
	if c.set["await"] {
		cfg.AwaitTarget = c.awaitTarget
	}
	return cfg, cfg.Validate()
}

// rerunCommand returns a command line that repeats this run for only the given tests.
func (c *commandParams) rerunCommand(program string, cfg config.Config, failed []framework.TestResult) string {
	b := commandBuilder{}
	b.add(program, "-url", cfg.BaseURL)
	if cfg.Browser != browser.KindStatic {
		b.add("-browser", cfg.Browser)
	}
	if c.configFile != "" {
		b.add("-config", c.configFile)
	}
	for _, f := range failed {
		b.add("-run", "^"+regexp.QuoteMeta(f.TestID.String())+"$")
	}
	b.add("-debug")
	return b.String()
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
