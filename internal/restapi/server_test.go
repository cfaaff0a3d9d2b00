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

package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionRequiresNoAuth(t *testing.T) {
	srv := httptest.NewServer(NewHandler(nil, nil, "falconeri", "secret"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEveryOtherRouteRequiresBasicAuth(t *testing.T) {
	srv := httptest.NewServer(NewHandler(nil, nil, "falconeri", "secret"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/jobs/list")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWrongCredentialsAreRejected(t *testing.T) {
	srv := httptest.NewServer(NewHandler(nil, nil, "falconeri", "secret"))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/jobs/list", nil)
	require.NoError(t, err)
	req.SetBasicAuth("falconeri", "wrong-password")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMalformedJobIDReturnsBadRequest(t *testing.T) {
	// nil pool is safe here: parseItemPath rejects the malformed id
	// before any handler touches the pool.
	srv := httptest.NewServer(NewHandler(nil, nil, "falconeri", "secret"))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/jobs/not-a-uuid/unknown-action", nil)
	require.NoError(t, err)
	req.SetBasicAuth("falconeri", "secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
