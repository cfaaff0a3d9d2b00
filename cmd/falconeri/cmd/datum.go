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
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var datumCmd = &cobra.Command{
	Use:   "datum",
	Short: "Inspect individual datums.",
}

var datumDescribeCmd = &cobra.Command{
	Use:   "describe <datum-id>",
	Short: "Show a datum's status, attempt count and input files.",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if err := requireAuthPassword(); err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parsing datum id: %w", err)
		}
		resp, err := newClient().DescribeDatum(context.Background(), id)
		if err != nil {
			return err
		}
		d := resp.Datum
		fmt.Printf("datum %s: %s (attempt %d/%d)\n", d.ID, d.Status, d.AttemptedRunCount, d.MaximumAllowedRunCount)
		if d.ErrorMessage != nil {
			fmt.Printf("  error: %s\n", *d.ErrorMessage)
		}
		for _, f := range resp.InputFiles {
			fmt.Printf("  input: %s -> %s\n", f.URI, f.LocalPath)
		}
		return nil
	},
}

func init() {
	datumCmd.AddCommand(datumDescribeCmd)
}
