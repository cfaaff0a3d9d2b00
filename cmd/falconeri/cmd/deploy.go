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
	"embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed all:templates
var deployTemplatesFS embed.FS

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "kubectl apply the falconerid/postgres manifests bundled with this binary.",
	RunE: func(c *cobra.Command, args []string) error {
		return applyTemplates("apply")
	},
}

var undeployCmd = &cobra.Command{
	Use:   "undeploy",
	Short: "kubectl delete the manifests `falconeri deploy` applied.",
	RunE: func(c *cobra.Command, args []string) error {
		return applyTemplates("delete")
	},
}

// applyTemplates writes the embedded manifests out to a scratch
// directory and shells out to kubectl, rather than templating them in
// process: the CLI's job is to get bytes in front of kubectl, not to
// reimplement a Helm-style renderer (spec §1's out-of-scope boundary).
func applyTemplates(verb string) error {
	dir, err := os.MkdirTemp("", "falconeri-deploy-*")
	if err != nil {
		return fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	entries, err := deployTemplatesFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("reading bundled templates: %w", err)
	}
	for _, e := range entries {
		data, err := deployTemplatesFS.ReadFile(filepath.Join("templates", e.Name()))
		if err != nil {
			return fmt.Errorf("reading template %s: %w", e.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(dir, e.Name()), data, 0o600); err != nil {
			return fmt.Errorf("writing template %s: %w", e.Name(), err)
		}
	}

	kubectl := exec.Command("kubectl", verb, "-f", dir)
	kubectl.Stdout = os.Stdout
	kubectl.Stderr = os.Stderr
	return kubectl.Run()
}
