package framework

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
}

// Context is the state of a single test or group of tests. It implements the TestingT
// interfaces of the assert and require packages.
type Context struct {
	env         *environment
	id          TestID
	ctx         context.Context
	cancel      context.CancelFunc
	debugLogger CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	cleanups    []func()
	hasSubtests bool
	result      TestResult
}

// Run executes the top-level action and returns the accumulated results of every test
// that was started with Context.Run inside it.
func Run(
	filter Filter,
	testLogger TestLogger,
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	env := &environment{
		filter:     filter,
		testLogger: testLogger,
	}
	c := newContext(env, TestID{}, context.Background())
	c.run(action)
	return env.results
}

func newContext(env *environment, id TestID, parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)
	return &Context{env: env, id: id, ctx: ctx, cancel: cancel}
}

func (c *Context) run(action func(*Context)) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if c.skipped {
				c.finish(started)
				return
			}
			c.failed = true
			var addError error
			if _, ok := r.(*Context); ok {
				if len(c.errors) == 0 {
					addError = errors.New("test failed with no failure message")
				}
			} else {
				addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
			}
			if addError != nil {
				c.errors = append(c.errors, addError)
				c.env.testLogger.TestError(c.id, addError)
			}
		}
		c.finish(started)
	}()

	action(c)
}

func (c *Context) finish(started time.Time) {
	c.runCleanups()
	c.cancel()
	if len(c.id.Path) == 0 {
		return // the root context is not a test
	}
	c.result = TestResult{
		TestID:     c.id,
		Errors:     c.errors,
		Skipped:    c.skipped,
		SkipReason: c.skipReason,
		Duration:   time.Since(started),
	}
	if c.hasSubtests && !c.failed && !c.skipped {
		return // groups are only reported if they fail outside of a subtest
	}
	c.env.results.Tests = append(c.env.results.Tests, c.result)
	if c.failed {
		c.env.results.Failures = append(c.env.results.Failures, c.result)
	}
}

func (c *Context) runCleanups() {
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.debugLogger.Printf("panic in deferred cleanup: %+v", r)
				}
			}()
			c.cleanups[i]()
		}()
	}
	c.cleanups = nil
}

func (c *Context) ID() TestID {
	return c.id
}

// Context returns a context.Context that is cancelled when this test ends.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Run starts a subtest. The filter is applied to the subtest's full ID; a test that is
// excluded by the filter is reported as skipped without running its action.
func (c *Context) Run(name string, action func(*Context)) {
	id := TestID{Path: append(append([]string(nil), c.id.Path...), name)}
	c.hasSubtests = true

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		reason := "excluded by filter parameters"
		c.env.results.Tests = append(c.env.results.Tests, TestResult{TestID: id, Skipped: true, SkipReason: reason})
		c.env.testLogger.TestSkipped(id, reason)
		return
	}
	c1 := newContext(c.env, id, c.ctx)
	c1.run(action)
	if c1.skipped {
		c.env.testLogger.TestSkipped(id, c1.skipReason)
	} else {
		c.env.testLogger.TestFinished(id, c1.result, c1.debugLogger.Output())
	}
}

func (c *Context) Errorf(format string, args ...interface{}) {
	c.failed = true
	err := fmt.Errorf(format, args...)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, reformatError(err))
}

func (c *Context) FailNow() {
	panic(c)
}

func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

// Defer schedules a function to be called when the test ends, whether it passed or not.
// Deferred functions run in reverse order.
func (c *Context) Defer(fn func()) {
	c.cleanups = append(c.cleanups, fn)
}

func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}
