// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of smoke tests.
//
// The general model is:
//
// 1. The target is an opaque HTTP endpoint, identified by a base URL that is supplied
// from outside the tests (a flag, an environment variable, or a config file).
//
// 2. There is a general notion of a test context which is similar to Go's *testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results. A failure in one test never stops its siblings from running.
//
// 3. Each test gets its own captured debug log, which the TestLogger may print depending
// on the outcome.
//
// The domain-specific code that knows what is being tested is responsible for providing
// a higher-level test API on top of the test context.
package framework
