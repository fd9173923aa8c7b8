package framework

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID     TestID
	Errors     []error
	Skipped    bool
	SkipReason string
	Duration   time.Duration
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Passed returns the number of tests that ran and recorded no errors.
func (r Results) Passed() int {
	n := 0
	for _, t := range r.Tests {
		if !t.Skipped && len(t.Errors) == 0 {
			n++
		}
	}
	return n
}

// Skipped returns the number of tests that were skipped, including ones excluded by a filter.
func (r Results) Skipped() int {
	n := 0
	for _, t := range r.Tests {
		if t.Skipped {
			n++
		}
	}
	return n
}

type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// PrintResults writes a summary of the test run.
func PrintResults(w io.Writer, results Results) {
	success := color.New(color.FgGreen).SprintFunc()
	failure := color.New(color.FgRed).SprintFunc()
	warning := color.New(color.FgYellow).SprintFunc()

	if results.OK() {
		fmt.Fprintf(w, "%s (%d passed, %d skipped)\n",
			success("All tests passed"), results.Passed(), results.Skipped())
		return
	}
	fmt.Fprintf(w, "%s (%d passed, %d failed, %d skipped)\n",
		failure("FAILED TESTS:"), results.Passed(), len(results.Failures), results.Skipped())
	for _, f := range results.Failures {
		fmt.Fprintf(w, "  * %s\n", f.TestID)
		for _, e := range f.Errors {
			for _, line := range strings.Split(reformatError(e).Error(), "\n") {
				fmt.Fprintf(w, "      %s\n", warning(line))
			}
		}
	}
}

// WriteJSONReport writes a JSON document describing every test in the run.
func WriteJSONReport(w io.Writer, results Results) error {
	tests := ldvalue.ArrayBuild()
	for _, t := range results.Tests {
		status := "passed"
		if t.Skipped {
			status = "skipped"
		} else if len(t.Errors) > 0 {
			status = "failed"
		}
		errs := ldvalue.ArrayBuild()
		for _, e := range t.Errors {
			errs.Add(ldvalue.String(e.Error()))
		}
		test := ldvalue.ObjectBuild().
			Set("id", ldvalue.String(t.TestID.String())).
			Set("status", ldvalue.String(status)).
			Set("durationMs", ldvalue.Int(int(t.Duration/time.Millisecond))).
			Set("errors", errs.Build())
		if t.SkipReason != "" {
			test.Set("skipReason", ldvalue.String(t.SkipReason))
		}
		tests.Add(test.Build())
	}
	report := ldvalue.ObjectBuild().
		Set("ok", ldvalue.Bool(results.OK())).
		Set("passed", ldvalue.Int(results.Passed())).
		Set("failed", ldvalue.Int(len(results.Failures))).
		Set("skipped", ldvalue.Int(results.Skipped())).
		Set("tests", tests.Build()).
		Build()
	_, err := fmt.Fprintln(w, report.JSONString())
	return err
}

// reformatError strips the leading newline and tab indentation that testify puts in its
// failure messages, which looks odd when printed outside of "go test".
func reformatError(err error) error {
	s := err.Error()
	if !strings.Contains(s, "\n\t") {
		return err
	}
	lines := strings.Split(strings.TrimLeft(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "\t ")
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}
