package smoketests

import (
	"net/http"

	"github.com/aicodereview/page-smoke-tests/client"

	"github.com/stretchr/testify/assert"
)

const (
	homePagePath    = "/"
	homePageHeading = "AI Code Review Pipeline"
	homePageTagline = "This app deploys automatically!"
)

// DoHomePageTests checks that the home page of the target renders its expected content.
// Each check loads the page independently, so one failing does not affect the others.
func DoHomePageTests(t *T) {
	t.Run("loads the home page", func(t *T) {
		p := t.Visit(homePagePath)
		p.Contains(homePageHeading).ShouldBeVisible()
		p.Contains(homePageTagline).ShouldBeVisible()
	})

	t.Run("returns 200 status code", func(t *T) {
		// The status is read from the raw response rather than from navigation, which would
		// fail on its own for anything other than 2xx.
		resp := t.Request(client.RequestParams{URL: homePagePath})
		assert.Equal(t, http.StatusOK, resp.Status)
	})

	t.Run("has HTML structure", func(t *T) {
		p := t.Visit(homePagePath)
		p.Get("h1").ShouldExist()
		p.Get("p").ShouldExist()
	})

	t.Run("body is visible", func(t *T) {
		t.Visit(homePagePath).Get("body").ShouldBeVisible()
	})
}
