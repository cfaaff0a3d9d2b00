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

// falconeri-worker is the per-pod process spec §4.6 describes: it loops
// reserving a datum, running the job's command, and reporting the
// outcome until the job it belongs to finishes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/falconeri/falconeri/internal/config"
	"github.com/falconeri/falconeri/internal/restclient"
	"github.com/falconeri/falconeri/internal/worker"
)

type options struct {
	controllerHost string
	jobID          string
}

func gatherOptions(fs *flag.FlagSet, args ...string) options {
	o := options{}
	fs.StringVar(&o.controllerHost, "controller-host", "http://falconerid:8089", "Base URL of the falconerid REST API.")
	fs.StringVar(&o.jobID, "job-id", os.Getenv("FALCONERI_JOB_ID"), "UUID of the job this pod was spawned to work on.")
	fs.Parse(args)
	return o
}

func (o *options) Validate() error {
	if o.controllerHost == "" {
		return fmt.Errorf("--controller-host is required")
	}
	if o.jobID == "" {
		return fmt.Errorf("--job-id (or FALCONERI_JOB_ID) is required")
	}
	return nil
}

func main() {
	o := gatherOptions(flag.NewFlagSet(os.Args[0], flag.ExitOnError), os.Args[1:]...)
	if err := o.Validate(); err != nil {
		logrus.WithError(err).Fatal("falconeri-worker: invalid options")
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})
	log := logrus.WithField("component", "falconeri-worker")

	jobID, err := uuid.Parse(o.jobID)
	if err != nil {
		log.WithError(err).Fatal("parsing --job-id")
	}

	nodeName := os.Getenv("NODE_NAME")
	podName := os.Getenv("POD_NAME")
	if podName == "" {
		log.Fatal("POD_NAME is required (expected from the Kubernetes downward API)")
	}

	password, err := config.ReadPostgresSecret()
	if err != nil {
		log.WithError(err).Fatal("reading postgres secret")
	}

	client := restclient.New(o.controllerHost, "falconeri", password, restclient.Cluster)

	ctx := context.Background()
	job, err := client.GetJob(ctx, jobID)
	if err != nil {
		log.WithError(err).Fatal("fetching job")
	}

	w := worker.New(client, jobID, nodeName, podName, job.Command)
	if err := w.Run(ctx); err != nil {
		log.WithError(err).Fatal("worker loop exited with error")
	}
	log.Info("job finished, exiting")
}
