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

// falconerid is the controller process: it serves the REST API (spec
// §4.1) on one pgxpool sized for request traffic, and runs the
// babysitter reconciliation loop (spec §4.5) on a second, dedicated
// single-connection pool so API load can never starve it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/falconeri/falconeri/internal/babysitter"
	"github.com/falconeri/falconeri/internal/config"
	"github.com/falconeri/falconeri/internal/dbpool"
	"github.com/falconeri/falconeri/internal/kubeops"
	"github.com/falconeri/falconeri/internal/restapi"
)

type options struct {
	port      int
	namespace string
	inCluster bool
	runOnce   bool
	authUser  string
}

func gatherOptions(fs *flag.FlagSet, args ...string) options {
	o := options{}
	fs.IntVar(&o.port, "port", config.DefaultPort, "Port the REST API listens on.")
	fs.StringVar(&o.namespace, "namespace", "falconeri", "Kubernetes namespace falconerid manages worker Jobs in.")
	fs.BoolVar(&o.inCluster, "in-cluster", true, "Whether falconerid runs inside Kubernetes (governs pool sizing and kubeconfig source).")
	fs.BoolVar(&o.runOnce, "run-once", false, "If true, run a single babysitter cycle then quit, instead of serving forever.")
	fs.StringVar(&o.authUser, "auth-user", "falconeri", "Basic Auth username the REST API expects.")
	fs.Parse(args)
	return o
}

func (o *options) Validate() error {
	if o.port <= 0 {
		return fmt.Errorf("--port must be positive")
	}
	if o.namespace == "" {
		return fmt.Errorf("--namespace is required")
	}
	return nil
}

func main() {
	o := gatherOptions(flag.NewFlagSet(os.Args[0], flag.ExitOnError), os.Args[1:]...)
	if err := o.Validate(); err != nil {
		logrus.WithError(err).Fatal("falconerid: invalid options")
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)
	log := logrus.WithField("component", "falconerid")

	cfg, err := config.Load(o.inCluster)
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}

	authPassword, err := config.ReadPostgresSecret()
	if err != nil {
		log.WithError(err).Fatal("reading postgres secret")
	}

	ctx := context.Background()

	apiPool, err := dbpool.New(ctx, cfg.DatabaseURL, int32(cfg.PoolSize))
	if err != nil {
		log.WithError(err).Fatal("connecting API pool to postgres")
	}
	defer apiPool.Close()

	if err := apiPool.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("running schema migration")
	}

	babysitterPool, err := dbpool.New(ctx, cfg.DatabaseURL, 1)
	if err != nil {
		log.WithError(err).Fatal("connecting babysitter pool to postgres")
	}
	defer babysitterPool.Close()

	var kube *kubeops.Client
	if o.inCluster {
		kube, err = kubeops.NewInCluster(o.namespace)
	} else {
		kube, err = kubeops.NewFromKubeconfig(os.Getenv("KUBECONFIG"), o.namespace)
	}
	if err != nil {
		log.WithError(err).Fatal("building kubernetes client")
	}

	b := babysitter.New(babysitterPool, kube)

	babysitterCtx, cancelBabysitter := context.WithCancel(ctx)
	defer cancelBabysitter()

	if o.runOnce {
		if err := b.RunOnce(babysitterCtx); err != nil {
			log.WithError(err).Fatal("babysitter cycle failed")
		}
		return
	}

	// A panic inside the babysitter's goroutine must abort the process
	// (spec §4.5, §6's exit code table), not be silently swallowed, so
	// this goroutine is deliberately left unrecovered.
	go b.Run(babysitterCtx)

	handler := restapi.NewHandler(apiPool, kube, o.authUser, authPassword)
	addr := fmt.Sprintf(":%d", o.port)
	log.WithField("addr", addr).Info("serving REST API")
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.WithError(err).Fatal("REST API server exited")
	}
}
