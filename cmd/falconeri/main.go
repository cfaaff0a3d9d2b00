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

// falconeri is the interactive command-line tool (spec §1's explicit
// out-of-scope surface, implemented thinly here): it talks to
// falconerid over the REST API via a kubectl port-forward, and shells
// out to kubectl/psql for the cluster-admin subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/falconeri/falconeri/cmd/falconeri/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
