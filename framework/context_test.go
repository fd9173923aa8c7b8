package framework

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTestLogger struct {
	events []string
}

func (r *recordingTestLogger) TestStarted(id TestID) {
	r.events = append(r.events, "started "+id.String())
}

func (r *recordingTestLogger) TestError(id TestID, err error) {
	r.events = append(r.events, "error "+id.String())
}

func (r *recordingTestLogger) TestFinished(id TestID, result TestResult, debugOutput CapturedOutput) {
	r.events = append(r.events, fmt.Sprintf("finished %s errors=%d", id, len(result.Errors)))
}

func (r *recordingTestLogger) TestSkipped(id TestID, reason string) {
	r.events = append(r.events, "skipped "+id.String()+" ("+reason+")")
}

func TestFailureInOneTestDoesNotStopSiblings(t *testing.T) {
	results := Run(nil, nil, func(c *Context) {
		c.Run("first", func(c *Context) {
			require.Fail(c, "first failed")
			panic("not reached")
		})
		c.Run("second", func(c *Context) {})
	})

	require.Len(t, results.Tests, 2)
	require.Len(t, results.Failures, 1)
	assert.Equal(t, "first", results.Failures[0].TestID.String())
	assert.False(t, results.OK())
	assert.Equal(t, 1, results.Passed())
}

func TestNonFatalErrorsAccumulate(t *testing.T) {
	results := Run(nil, nil, func(c *Context) {
		c.Run("test", func(c *Context) {
			assert.Equal(c, 1, 2)
			assert.Equal(c, "a", "b")
		})
	})

	require.Len(t, results.Failures, 1)
	assert.Len(t, results.Failures[0].Errors, 2)
}

func TestUnexpectedPanicIsReportedAsFailure(t *testing.T) {
	results := Run(nil, nil, func(c *Context) {
		c.Run("test", func(c *Context) {
			panic(errors.New("boom"))
		})
	})

	require.Len(t, results.Failures, 1)
	require.Len(t, results.Failures[0].Errors, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "unexpected panic in test: boom")
}

func TestFailNowWithoutMessage(t *testing.T) {
	results := Run(nil, nil, func(c *Context) {
		c.Run("test", func(c *Context) {
			c.FailNow()
		})
	})

	require.Len(t, results.Failures, 1)
	assert.EqualError(t, results.Failures[0].Errors[0], "test failed with no failure message")
}

func TestSkip(t *testing.T) {
	logger := &recordingTestLogger{}
	results := Run(nil, logger, func(c *Context) {
		c.Run("test", func(c *Context) {
			c.SkipWithReason("not today")
		})
	})

	assert.True(t, results.OK())
	require.Len(t, results.Tests, 1)
	assert.True(t, results.Tests[0].Skipped)
	assert.Equal(t, 1, results.Skipped())
	assert.Equal(t, []string{"started test", "skipped test (not today)"}, logger.events)
}

func TestFilterExcludesTests(t *testing.T) {
	ran := false
	logger := &recordingTestLogger{}
	filter := func(id TestID) bool { return id.String() != "group/excluded" }
	results := Run(filter, logger, func(c *Context) {
		c.Run("group", func(c *Context) {
			c.Run("excluded", func(c *Context) { ran = true })
			c.Run("included", func(c *Context) {})
		})
	})

	assert.False(t, ran)
	assert.Len(t, results.Tests, 2, "groups that pass should not be counted as tests")
	assert.True(t, results.OK())
	assert.Equal(t, 1, results.Skipped())
	assert.Equal(t, []string{
		"started group",
		"started group/excluded",
		"skipped group/excluded (excluded by filter parameters)",
		"started group/included",
		"finished group/included errors=0",
		"finished group errors=0",
	}, logger.events)
}

func TestSubtestIDsDoNotShareBackingArray(t *testing.T) {
	var ids []string
	Run(nil, nil, func(c *Context) {
		c.Run("a", func(c *Context) {
			c.Run("b", func(c *Context) { ids = append(ids, c.ID().String()) })
			c.Run("c", func(c *Context) { ids = append(ids, c.ID().String()) })
		})
	})
	assert.Equal(t, []string{"a/b", "a/c"}, ids)
}

func TestDeferredFunctionsRunInReverseOrderEvenOnFailure(t *testing.T) {
	var calls []int
	Run(nil, nil, func(c *Context) {
		c.Run("test", func(c *Context) {
			c.Defer(func() { calls = append(calls, 1) })
			c.Defer(func() { calls = append(calls, 2) })
			c.FailNow()
		})
	})
	assert.Equal(t, []int{2, 1}, calls)
}

func TestContextIsCancelledWhenTestEnds(t *testing.T) {
	var c1 *Context
	Run(nil, nil, func(c *Context) {
		c.Run("test", func(c *Context) {
			c1 = c
			assert.NoError(t, c.Context().Err())
		})
	})
	require.NotNil(t, c1)
	assert.Error(t, c1.Context().Err())
}

func TestDebugOutputIsPassedToLogger(t *testing.T) {
	var captured CapturedOutput
	logger := &capturingTestLogger{onFinished: func(o CapturedOutput) { captured = o }}
	Run(nil, logger, func(c *Context) {
		c.Run("test", func(c *Context) {
			c.Debug("hello %s", "world")
			c.DebugLogger().Printf("second")
		})
	})
	require.Len(t, captured, 2)
	assert.Equal(t, "hello world", captured[0].Message)
	assert.Equal(t, "second", captured[1].Message)
}

type capturingTestLogger struct {
	recordingTestLogger
	onFinished func(CapturedOutput)
}

func (c *capturingTestLogger) TestFinished(id TestID, result TestResult, debugOutput CapturedOutput) {
	c.onFinished(debugOutput)
}
