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

// Package restapi is the controller's HTTP surface (spec §4.1, §6):
// HTTP/1.1 with JSON bodies over plaintext, HTTP Basic Auth, gzip
// response compression and a 50 MiB body cap, routed without a
// third-party router the way the teacher's own cmd/deck does it.
package restapi

import (
	"context"
	"net/http"

	"github.com/NYTimes/gziphandler"
	corev1 "k8s.io/api/core/v1"

	"github.com/falconeri/falconeri/internal/dbpool"
	"github.com/falconeri/falconeri/internal/model"
)

// workerJobCreator is the one kubeops.Client method job creation needs,
// narrowed to an interface so handler tests can run without a live
// cluster (mirrors babysitter's kubeClient interface).
type workerJobCreator interface {
	CreateWorkerJob(ctx context.Context, job *model.Job, image string, parallelism int32, env []corev1.EnvVar) error
}

// Server holds the dependencies every handler needs.
type Server struct {
	pool *dbpool.Pool
	kube workerJobCreator
}

// NewHandler builds the fully wired HTTP handler: routing with gzip
// compression per route (except /metrics), Basic Auth, body-size
// limiting and request logging, in that wrapping order from the inside
// out. kube may be nil, in which case
// job creation skips spawning the backing Kubernetes Job object (used
// by tests that only exercise the data-plane endpoints).
func NewHandler(pool *dbpool.Pool, kube workerJobCreator, username, password string) http.Handler {
	s := &Server{pool: pool, kube: kube}

	mux := http.NewServeMux()
	mux.Handle("/version", gziphandler.GzipHandler(http.HandlerFunc(handleVersion)))
	mux.Handle("/metrics", metricsHandler())
	mux.Handle("/jobs", gziphandler.GzipHandler(recordMetrics("jobs", s.handleJobsRoot)))
	mux.Handle("/jobs/list", gziphandler.GzipHandler(recordMetrics("jobs_list", s.handleJobsList)))
	mux.Handle("/jobs/", gziphandler.GzipHandler(recordMetrics("jobs_item", s.handleJobsItem)))
	mux.Handle("/datums/", gziphandler.GzipHandler(recordMetrics("datums_item", s.handleDatumsItem)))

	return logRequests(limitBody(basicAuth(username, password, mux)))
}

// Version is set at build time via -ldflags, matching the teacher's own
// version-stamping convention for its binaries.
var Version = "dev"

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}
