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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/falconeri/falconeri/internal/dbpool"
	"github.com/falconeri/falconeri/internal/model"
	"github.com/falconeri/falconeri/internal/restclient"
)

// newTestPool mirrors dbpool's own test helper: skipped unless a real
// Postgres instance is available, since the reservation endpoints rely
// on real row-locking semantics.
func newTestPool(t *testing.T) *dbpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres-backed test")
	}
	p, err := dbpool.New(context.Background(), url, 10)
	require.NoError(t, err)
	require.NoError(t, p.Migrate(context.Background()))
	t.Cleanup(p.Close)
	return p
}

// seedJob inserts a job with numDatums ready datums directly through
// dbpool, bypassing object-store resolution so these tests exercise the
// HTTP surface without needing real cloud credentials.
func seedJob(t *testing.T, p *dbpool.Pool, numDatums, maxAttempts int) *model.Job {
	t.Helper()
	job := model.NewJob("restapi-test-"+uuid.New().String()[:8], []string{"/bin/true"}, "gs://bucket/out/", json.RawMessage(`{}`))
	var datums []*model.Datum
	var files []*model.InputFile
	for i := 0; i < numDatums; i++ {
		d := model.NewDatum(job.ID, maxAttempts)
		datums = append(datums, d)
		files = append(files, model.NewInputFile(d.ID, job.ID, "gs://bucket/in/a", "/pfs/in/a"))
	}
	require.NoError(t, p.CreateJobWithDatums(context.Background(), job, datums, files))
	return job
}

func TestReserveRunPatchEndToEnd(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 1, 3)

	srv := httptest.NewServer(NewHandler(pool, nil, "falconeri", "secret"))
	defer srv.Close()
	client := restclient.New(srv.URL, "falconeri", "secret", restclient.Proxy)
	ctx := context.Background()

	reserved, err := client.ReserveNextDatum(ctx, job.ID, "node-0", "pod-0")
	require.NoError(t, err)
	require.NotNil(t, reserved.Datum)
	require.Len(t, reserved.InputFiles, 1)

	patched, err := client.PatchDatum(ctx, reserved.Datum.ID, restclient.PatchDatumRequest{
		PodName: "pod-0",
		Status:  model.StatusDone,
		Output:  "all good",
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusDone, patched.Status)

	job2, err := client.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusDone, job2.Status, "the only datum finished, so the job must be marked done")
}

func TestReserveNextDatumReturnsNilWhenNoneAvailable(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 1, 3)

	srv := httptest.NewServer(NewHandler(pool, nil, "falconeri", "secret"))
	defer srv.Close()
	client := restclient.New(srv.URL, "falconeri", "secret", restclient.Proxy)
	ctx := context.Background()

	_, err := client.ReserveNextDatum(ctx, job.ID, "node-0", "pod-0")
	require.NoError(t, err)

	resp, err := client.ReserveNextDatum(ctx, job.ID, "node-0", "pod-1")
	require.NoError(t, err)
	require.Nil(t, resp.Datum)
}

// TestReserveNextDatumWhenJobFinishedReturnsNilNot409 guards against a
// worker that observes the job Running via GetJob, then loses the race
// against the job's own completion before its reservation transaction
// commits: it must still see a 200 with a nil datum, the same outcome
// as an empty queue, not a 409 that would hang restclient's Cluster
// retry loop forever.
func TestReserveNextDatumWhenJobFinishedReturnsNilNot409(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 1, 3)

	_, err := pool.Raw().Exec(context.Background(),
		"UPDATE jobs SET status = $2 WHERE id = $1", job.ID, model.StatusDone)
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(pool, nil, "falconeri", "secret"))
	defer srv.Close()
	client := restclient.New(srv.URL, "falconeri", "secret", restclient.Proxy)

	resp, err := client.ReserveNextDatum(context.Background(), job.ID, "node-0", "pod-0")
	require.NoError(t, err)
	require.Nil(t, resp.Datum)
}

func TestPatchDatumByWrongPodIsForbidden(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 1, 3)

	srv := httptest.NewServer(NewHandler(pool, nil, "falconeri", "secret"))
	defer srv.Close()
	client := restclient.New(srv.URL, "falconeri", "secret", restclient.Proxy)
	ctx := context.Background()

	reserved, err := client.ReserveNextDatum(ctx, job.ID, "node-0", "pod-0")
	require.NoError(t, err)

	_, err = client.PatchDatum(ctx, reserved.Datum.ID, restclient.PatchDatumRequest{
		PodName: "impostor-pod",
		Status:  model.StatusDone,
	})
	require.Error(t, err)
}

func TestDescribeJobReportsCounts(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 2, 3)

	srv := httptest.NewServer(NewHandler(pool, nil, "falconeri", "secret"))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/jobs/"+job.ID.String()+"/describe", nil)
	require.NoError(t, err)
	req.SetBasicAuth("falconeri", "secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out describeJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 2, out.Counts.Ready)
}
