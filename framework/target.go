package framework

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const targetPollInterval = time.Millisecond * 250

// AwaitTarget polls the target URL until it answers an HTTP GET with any status, or
// until the timeout expires. It is an optional step before the suite starts, used when
// the target is being deployed at the same time as the tests are launched; the tests
// themselves never retry.
//
// A zero or negative timeout means a single attempt.
func AwaitTarget(ctx context.Context, client *http.Client, url string, timeout time.Duration, output io.Writer) error {
	if client == nil {
		client = http.DefaultClient
	}
	fmt.Fprintf(output, "Waiting for target at %s", url)
	defer fmt.Fprintln(output)

	ctx, cancel := context.WithTimeout(ctx, maxDuration(timeout, targetPollInterval))
	defer cancel()
	ticker := time.NewTicker(targetPollInterval)
	defer ticker.Stop()

	for {
		fmt.Fprintf(output, ".")
		err := probeTarget(ctx, client, url)
		if err == nil {
			return nil
		}
		if timeout <= 0 {
			return fmt.Errorf("target is not reachable: %w", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for target, result of last query was: %w", err)
		case <-ticker.C:
		}
	}
}

func probeTarget(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
