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

// Package cmd is the falconeri CLI's cobra command tree: job and datum
// inspection, cluster deploy/undeploy, and thin wrappers over kubectl's
// port-forward and psql for the proxy and db subcommands (spec §1).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/falconeri/falconeri/internal/restclient"
)

var (
	controllerHost string
	authUser       string
	authPassword   string
)

var rootCmd = &cobra.Command{
	Use:   "falconeri",
	Short: "Submit and inspect Falconeri batch jobs running on Kubernetes.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&controllerHost, "controller-host", "http://localhost:8089",
		"Base URL of falconerid, reached via `falconeri proxy` by default.")
	rootCmd.PersistentFlags().StringVar(&authUser, "auth-user", "falconeri", "Basic Auth username.")
	rootCmd.PersistentFlags().StringVar(&authPassword, "auth-password", os.Getenv("FALCONERI_AUTH_PASSWORD"),
		"Basic Auth password (defaults to $FALCONERI_AUTH_PASSWORD).")

	rootCmd.AddCommand(jobCmd, datumCmd, migrateCmd, deployCmd, undeployCmd, proxyCmd, dbCmd)
}

// newClient builds the restclient used by every subcommand that talks
// to falconerid. The CLI always connects via a port-forward proxy, so
// it never retries (spec §7): a human watching a terminal should see a
// failure immediately, not sit through a silent backoff loop.
func newClient() *restclient.Client {
	return restclient.New(controllerHost, authUser, authPassword, restclient.Proxy)
}

func requireAuthPassword() error {
	if authPassword == "" {
		return fmt.Errorf("--auth-password (or $FALCONERI_AUTH_PASSWORD) is required")
	}
	return nil
}
