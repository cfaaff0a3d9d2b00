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

package babysitter

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/falconeri/falconeri/internal/dbpool"
	"github.com/falconeri/falconeri/internal/model"
)

// fakeKube lets tests control the live Job/Pod name sets without a
// cluster, per spec §4.5's passes being defined purely in terms of
// "the live name set".
type fakeKube struct {
	jobNames map[string]bool
	podNames map[string]bool
}

func (f *fakeKube) LiveJobNames(ctx context.Context) (map[string]bool, error) { return f.jobNames, nil }
func (f *fakeKube) LivePodNames(ctx context.Context) (map[string]bool, error) { return f.podNames, nil }

func newTestPool(t *testing.T) *dbpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres-backed test")
	}
	p, err := dbpool.New(context.Background(), url, 1)
	require.NoError(t, err)
	require.NoError(t, p.Migrate(context.Background()))
	t.Cleanup(p.Close)
	return p
}

func seedJob(t *testing.T, p *dbpool.Pool, numDatums, maxAttempts int) *model.Job {
	t.Helper()
	job := model.NewJob("babysitter-test-"+uuid.New().String()[:8], []string{"/bin/true"}, "gs://bucket/out/", json.RawMessage(`{}`))
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

func TestReapZombieDatumMarksErrorAndRecomputesJob(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 1, 3)

	datum, _, err := pool.ReserveNextDatum(context.Background(), job.ID, "node", "dead-pod")
	require.NoError(t, err)

	b := New(pool, nil)
	b.kube = &fakeKube{jobNames: map[string]bool{}, podNames: map[string]bool{}}

	require.NoError(t, b.reapZombieDatums(context.Background()))

	reloaded, err := pool.GetDatum(context.Background(), datum.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusError, reloaded.Status)
	require.Equal(t, "worker pod disappeared while working on datum", *reloaded.ErrorMessage)
}

func TestReapZombieDatumSkipsLivePods(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 1, 3)

	datum, _, err := pool.ReserveNextDatum(context.Background(), job.ID, "node", "alive-pod")
	require.NoError(t, err)

	b := New(pool, nil)
	b.kube = &fakeKube{jobNames: map[string]bool{}, podNames: map[string]bool{"alive-pod": true}}

	require.NoError(t, b.reapZombieDatums(context.Background()))

	reloaded, err := pool.GetDatum(context.Background(), datum.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRunning, reloaded.Status)
}

func TestRequeueRerunnableDatumsTransitionsReadyWithoutBumpingAttempts(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 1, 2)

	datum, _, err := pool.ReserveNextDatum(context.Background(), job.ID, "node", "pod-a")
	require.NoError(t, err)
	_, err = pool.MarkDatumError(context.Background(), datum.ID, "pod-a", "boom", "", "stderr")
	require.NoError(t, err)

	b := New(pool, nil)
	require.NoError(t, b.requeueRerunnableDatums(context.Background()))

	reloaded, err := pool.GetDatum(context.Background(), datum.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusReady, reloaded.Status)
	require.Equal(t, 1, reloaded.AttemptedRunCount)
}

func TestReapVanishedJobsMarksErrorPastGracePeriod(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 1, 3)

	_, err := pool.Raw().Exec(context.Background(),
		"UPDATE jobs SET created_at = $2 WHERE id = $1", job.ID, time.Now().Add(-vanishedJobGrace-time.Minute))
	require.NoError(t, err)

	b := New(pool, nil)
	b.kube = &fakeKube{jobNames: map[string]bool{}, podNames: map[string]bool{}}

	require.NoError(t, b.reapVanishedJobs(context.Background()))

	reloaded, err := pool.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusError, reloaded.Status)
}

func TestReapVanishedJobsRespectsGracePeriod(t *testing.T) {
	pool := newTestPool(t)
	job := seedJob(t, pool, 1, 3)

	b := New(pool, nil)
	b.kube = &fakeKube{jobNames: map[string]bool{}, podNames: map[string]bool{}}

	require.NoError(t, b.reapVanishedJobs(context.Background()))

	reloaded, err := pool.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusRunning, reloaded.Status, "a freshly created job must survive one cycle inside the grace period")
}
