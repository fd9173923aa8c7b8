package framework

import (
	"context"
	"io/ioutil"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
)

func TestAwaitTargetSucceedsForAnyStatus(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(503), func(server *httptest.Server) {
		err := AwaitTarget(context.Background(), nil, server.URL, time.Second, ioutil.Discard)
		assert.NoError(t, err)
	})
}

func TestAwaitTargetGivesUp(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(200))
	url := server.URL
	server.Close()

	err := AwaitTarget(context.Background(), nil, url, 0, ioutil.Discard)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "target is not reachable")

	err = AwaitTarget(context.Background(), nil, url, 300*time.Millisecond, ioutil.Discard)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timed out waiting for target")
}
