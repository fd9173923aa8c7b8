package smoketests

import (
	"github.com/aicodereview/page-smoke-tests/browser"
	"github.com/aicodereview/page-smoke-tests/client"
	"github.com/aicodereview/page-smoke-tests/config"
	"github.com/aicodereview/page-smoke-tests/framework"
)

// Environment is everything the tests need from outside: where the target is, and the
// collaborators used to talk to it.
type Environment struct {
	Config  config.Config
	Browser browser.Browser
	Client  *client.Client
}

func RunTestSuite(
	env Environment,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	return framework.Run(filter, testLogger, func(c *framework.Context) {
		t := newTestScope(c, &env)

		t.Run("home page", DoHomePageTests)
	})
}
