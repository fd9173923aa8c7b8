package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aicodereview/page-smoke-tests/framework"

	"github.com/fatih/color"
)

type ConsoleTestLogger struct {
	Output               io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

var (
	failedColor  = color.New(color.FgRed, color.Bold)
	passedColor  = color.New(color.FgGreen)
	skippedColor = color.New(color.FgYellow)
)

func (c *ConsoleTestLogger) TestStarted(id framework.TestID) {
	fmt.Fprintf(c.Output, "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestError(id framework.TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.Output, "  %s\n", line)
	}
}

func (c *ConsoleTestLogger) TestFinished(id framework.TestID, result framework.TestResult, debugOutput framework.CapturedOutput) {
	failed := len(result.Errors) > 0
	elapsed := result.Duration.Round(time.Millisecond)
	if failed {
		failedColor.Fprintf(c.Output, "  FAILED: %s (%s)\n", id, elapsed)
	} else {
		passedColor.Fprintf(c.Output, "  passed (%s)\n", elapsed)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		debugOutput.Dump(c.Output, "    DEBUG ")
	}
}

func (c *ConsoleTestLogger) TestSkipped(id framework.TestID, reason string) {
	if reason == "" {
		skippedColor.Fprintf(c.Output, "  SKIPPED: %s\n", id)
	} else {
		skippedColor.Fprintf(c.Output, "  SKIPPED: %s (%s)\n", id, reason)
	}
}
