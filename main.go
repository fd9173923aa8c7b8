package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/aicodereview/page-smoke-tests/browser"
	"github.com/aicodereview/page-smoke-tests/client"
	"github.com/aicodereview/page-smoke-tests/framework"
	"github.com/aicodereview/page-smoke-tests/smoketests"

	"github.com/fatih/color"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr, os.LookupEnv))
}

func run(args []string, stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) int {
	var params commandParams
	if !params.Read(args, stderr) {
		return 1
	}
	if params.noColor {
		color.NoColor = true
	}

	cfg, err := params.resolveConfig(lookupEnv)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %s\n", err)
		return 1
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(stdout, "", log.LstdFlags)
	}

	httpClient := client.New(cfg.RequestTimeout)
	if cfg.AwaitTarget > 0 {
		homeURL, err := cfg.ResolveURL("/")
		if err != nil {
			fmt.Fprintf(stderr, "Invalid configuration: %s\n", err)
			return 1
		}
		if err := framework.AwaitTarget(context.Background(), httpClient.HTTPClient(), homeURL, cfg.AwaitTarget, stdout); err != nil {
			fmt.Fprintf(stderr, "Target error: %s\n", err)
			return 1
		}
	}

	b, err := browser.Open(browser.Options{
		Kind:        cfg.Browser,
		Client:      httpClient,
		ChromeBin:   cfg.ChromeBin,
		ShowBrowser: cfg.ShowBrowser,
		Logger:      framework.WithPrefix(mainDebugLogger, "[browser] "),
	})
	if err != nil {
		fmt.Fprintf(stderr, "Browser error: %s\n", err)
		return 1
	}
	defer func() {
		if err := b.Close(); err != nil {
			mainDebugLogger.Printf("error closing browser: %s", err)
		}
	}()

	fmt.Fprintln(stdout)
	framework.PrintFilterDescription(stdout, params.filters)

	fmt.Fprintf(stdout, "Running smoke tests against %s (%s browser)\n", cfg.BaseURL, cfg.Browser)

	testLogger := &ConsoleTestLogger{
		Output:               stdout,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	env := smoketests.Environment{Config: cfg, Browser: b, Client: httpClient}
	results := smoketests.RunTestSuite(env, params.filters.AsFilter, testLogger)

	fmt.Fprintln(stdout)
	framework.PrintResults(stdout, results)

	if params.jsonReport != "" {
		if err := writeJSONReport(params.jsonReport, results); err != nil {
			fmt.Fprintf(stderr, "Error writing JSON report: %s\n", err)
			return 1
		}
	}

	if !results.OK() {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "To run only the failed tests again with debug output:")
		fmt.Fprintf(stdout, "  %s\n", params.rerunCommand(args[0], cfg, results.Failures))
		return 1
	}
	return 0
}

func writeJSONReport(path string, results framework.Results) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := framework.WriteJSONReport(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
