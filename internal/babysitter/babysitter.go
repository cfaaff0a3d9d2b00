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

// Package babysitter is the controller's periodic reconciliation task
// (spec §4.5): three passes that catch outcomes the API alone cannot
// observe — a job whose Kubernetes object never appeared or vanished,
// a datum whose owning pod died mid-run, and errored datums with
// retries left.
package babysitter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/falconeri/falconeri/internal/dbpool"
	"github.com/falconeri/falconeri/internal/kubeops"
	"github.com/falconeri/falconeri/internal/model"
)

// cycleInterval is spec §5's "Babysitter cycle: 120 s".
const cycleInterval = 120 * time.Second

var cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "falconerid_babysitter_cycle_seconds",
	Help:    "Wall-clock duration of one babysitter reconciliation cycle.",
	Buckets: prometheus.DefBuckets,
})

func init() {
	prometheus.MustRegister(cycleDuration)
}

// vanishedJobGrace is spec §4.5's "15-minute grace avoids racing pod
// creation".
const vanishedJobGrace = 15 * time.Minute

// kubeClient is the slice of kubeops.Client the babysitter needs,
// narrowed to an interface so tests can fake it without a live cluster.
type kubeClient interface {
	LiveJobNames(ctx context.Context) (map[string]bool, error)
	LivePodNames(ctx context.Context) (map[string]bool, error)
}

// Babysitter owns the dedicated single-connection pool spec §5 requires
// so API traffic can never starve reconciliation.
type Babysitter struct {
	pool *dbpool.Pool
	kube kubeClient
}

// New builds a Babysitter.
func New(pool *dbpool.Pool, kube *kubeops.Client) *Babysitter {
	return &Babysitter{pool: pool, kube: kube}
}

// Run ticks forever at cycleInterval until ctx is cancelled. A panic
// inside a cycle is not recovered: spec §4.5 requires the process to
// abort so its orchestrator restarts it, so this deliberately does not
// wrap RunOnce in a recover().
func (b *Babysitter) Run(ctx context.Context) {
	ticker := time.NewTicker(cycleInterval)
	defer ticker.Stop()

	for {
		if err := b.RunOnce(ctx); err != nil {
			logrus.WithError(err).Error("babysitter: cycle failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes the three reconciliation passes once, in order.
func (b *Babysitter) RunOnce(ctx context.Context) error {
	defer func(start time.Time) { cycleDuration.Observe(time.Since(start).Seconds()) }(time.Now())

	if err := b.reapVanishedJobs(ctx); err != nil {
		return err
	}
	if err := b.reapZombieDatums(ctx); err != nil {
		return err
	}
	return b.requeueRerunnableDatums(ctx)
}

// reapVanishedJobs is pass 1 (spec §4.5): recompute every running job's
// status, then mark jobs Error whose Kubernetes Job object never
// appeared (or has since vanished) past the grace period.
func (b *Babysitter) reapVanishedJobs(ctx context.Context) error {
	jobs, err := b.pool.ListRunningJobs(ctx)
	if err != nil {
		return err
	}

	liveJobNames, err := b.kube.LiveJobNames(ctx)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := b.pool.UpdateJobStatusIfDone(ctx, job.ID); err != nil {
			return err
		}
		if liveJobNames[job.JobName] {
			continue
		}
		if time.Since(job.CreatedAt) < vanishedJobGrace {
			continue
		}
		if err := b.pool.WithTx(ctx, func(tx pgx.Tx) error {
			locked, err := dbpool.LockJob(ctx, tx, job.ID)
			if err != nil {
				return err
			}
			if locked.Status.HasFinished() {
				return nil
			}
			return dbpool.SetJobStatus(ctx, tx, job.ID, model.StatusError)
		}); err != nil {
			return err
		}
		logrus.WithField("job_id", job.ID).WithField("job_name", job.JobName).
			Warn("babysitter: no corresponding Kubernetes job, marking error")
	}
	return nil
}

// reapZombieDatums is pass 2 (spec §4.5): every Running datum whose pod
// is no longer live is marked Error, and its job's status recomputed.
func (b *Babysitter) reapZombieDatums(ctx context.Context) error {
	datums, err := b.pool.ListRunningDatums(ctx)
	if err != nil {
		return err
	}

	livePodNames, err := b.kube.LivePodNames(ctx)
	if err != nil {
		return err
	}

	for _, datum := range datums {
		if datum.PodName != nil && livePodNames[*datum.PodName] {
			continue
		}
		if err := b.pool.WithTx(ctx, func(tx pgx.Tx) error {
			return dbpool.MarkZombieDatumError(ctx, tx, datum.ID, "worker pod disappeared while working on datum")
		}); err != nil {
			return err
		}
		if err := b.pool.UpdateJobStatusIfDone(ctx, datum.JobID); err != nil {
			return err
		}
		logrus.WithField("datum_id", datum.ID).Warn("babysitter: reaped zombie datum")
	}
	return nil
}

// requeueRerunnableDatums is pass 3 (spec §4.5): errored datums with
// attempts remaining, whose job is still running, go back to Ready.
func (b *Babysitter) requeueRerunnableDatums(ctx context.Context) error {
	datums, err := b.pool.ListRerunnableDatums(ctx)
	if err != nil {
		return err
	}
	for _, datum := range datums {
		if err := b.pool.WithTx(ctx, func(tx pgx.Tx) error {
			return dbpool.RequeueRerunnableDatum(ctx, tx, datum.ID)
		}); err != nil {
			return err
		}
	}
	return nil
}
