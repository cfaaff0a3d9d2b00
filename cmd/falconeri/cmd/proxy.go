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

package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var (
	proxyNamespace string
	proxyPort      int
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Port-forward falconerid's REST API to localhost (spec §7's ConnectVia::Proxy transport).",
	RunE: func(c *cobra.Command, args []string) error {
		local := fmt.Sprintf("%d:8089", proxyPort)
		kubectl := exec.Command("kubectl", "-n", proxyNamespace, "port-forward", "deploy/falconerid", local)
		kubectl.Stdout = os.Stdout
		kubectl.Stderr = os.Stderr
		kubectl.Stdin = os.Stdin
		return kubectl.Run()
	},
}

func init() {
	proxyCmd.Flags().StringVar(&proxyNamespace, "namespace", "falconeri", "Namespace falconerid is deployed in.")
	proxyCmd.Flags().IntVar(&proxyPort, "port", 8089, "Local port to forward falconerid's REST API to.")
}
