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

package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconeri/falconeri/internal/model"
)

func TestVersionUsesBasicAuthAndDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "falconeri" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "1.2.3"})
	}))
	defer srv.Close()

	c := New(srv.URL, "falconeri", "secret", Proxy)
	version, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", version)
}

func TestProxyDoesNotRetryOnError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "falconeri", "secret", Proxy)
	_, err := c.Version(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestClusterRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, "falconeri", "secret", Cluster)
	version, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", version)
	assert.Equal(t, 3, attempts)
}

func TestReserveNextDatumRoundTrip(t *testing.T) {
	datumID := uuid.New()
	jobID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/"+jobID.String()+"/reserve_next_datum", r.URL.Path)
		var req ReserveNextDatumRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "worker-pod-0", req.PodName)

		resp := ReserveNextDatumResponse{
			Datum: &model.Datum{ID: datumID, JobID: jobID, Status: model.StatusRunning},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(srv.URL, "falconeri", "secret", Proxy)
	resp, err := c.ReserveNextDatum(context.Background(), jobID, "node-0", "worker-pod-0")
	require.NoError(t, err)
	require.NotNil(t, resp.Datum)
	assert.Equal(t, datumID, resp.Datum.ID)
}

func TestNon2xxResponseReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("ownership mismatch"))
	}))
	defer srv.Close()

	c := New(srv.URL, "falconeri", "secret", Proxy)
	_, err := c.GetJob(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ownership mismatch")
}
