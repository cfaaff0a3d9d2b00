/*
Copyright 2026 The Falconeri Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package restclient is the HTTP client the worker and CLI use to talk
// to the controller (spec §6, §7). It is grounded on the request /
// retry / doRequest triad of a typical Kubernetes client-library
// wrapper, generalized to Falconeri's own wire protocol and retry
// policy.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ConnectVia selects the retry policy (spec §7): workers run inside the
// cluster and retry forever with backoff, the interactive CLI connects
// via a port-forward proxy and does not retry at all.
type ConnectVia int

const (
	// Cluster is used by falconeri-worker: unbounded exponential
	// backoff with jitter.
	Cluster ConnectVia = iota
	// Proxy is used by the CLI: zero retries, fail fast for a human
	// watching a terminal.
	Proxy
)

const (
	minRetryDelay = 500 * time.Millisecond
	maxRetryDelay = 30 * time.Second
)

// Client is a minimal JSON-over-HTTP client with Basic Auth and the
// spec's retry policy. It carries no base path beyond baseURL; callers
// pass full request paths.
type Client struct {
	baseURL    string
	username   string
	password   string
	connectVia ConnectVia
	httpClient *http.Client
}

// New builds a Client. baseURL has no trailing slash.
func New(baseURL, username, password string, connectVia ConnectVia) *Client {
	return &Client{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		connectVia: connectVia,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// request describes one outbound call before retry/backoff wraps it.
type request struct {
	method string
	path   string
	body   interface{}
}

// Get performs a GET and decodes the JSON response body into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, path: path}, out)
}

// Post performs a POST with a JSON body and decodes the JSON response
// body into out (which may be nil to discard it).
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body}, out)
}

// Patch performs a PATCH with a JSON body and decodes the JSON response
// body into out (which may be nil to discard it).
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, request{method: http.MethodPatch, path: path, body: body}, out)
}

// do executes req, retrying per the client's ConnectVia policy (spec
// §7: unbounded backoff for Cluster, none for Proxy).
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	for attempt := 0; ; attempt++ {
		err := c.doRequest(ctx, req, out)
		if err == nil {
			return nil
		}
		if c.connectVia == Proxy {
			return err
		}
		delay := backoffDelay(attempt)
		logrus.WithError(err).WithField("attempt", attempt).
			WithField("delay", delay).Warn("restclient: retrying after error")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) doRequest(ctx context.Context, req request, out interface{}) error {
	var bodyReader io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return errors.Wrap(err, "restclient: encoding request body")
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, bodyReader)
	if err != nil {
		return errors.Wrap(err, "restclient: building request")
	}
	httpReq.SetBasicAuth(c.username, c.password)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "restclient: performing request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "restclient: reading response body")
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("restclient: %s %s: status %d: %s", req.method, req.path, resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "restclient: decoding response body")
	}
	return nil
}

// backoffDelay computes exponential backoff with full jitter, bounded
// to [minRetryDelay, maxRetryDelay] per spec §7.
func backoffDelay(attempt int) time.Duration {
	backoff := minRetryDelay * time.Duration(1<<uint(attempt))
	if backoff > maxRetryDelay || backoff <= 0 {
		backoff = maxRetryDelay
	}
	jittered := time.Duration(rand.Int63n(int64(backoff)))
	if jittered < minRetryDelay {
		jittered = minRetryDelay
	}
	return jittered
}
