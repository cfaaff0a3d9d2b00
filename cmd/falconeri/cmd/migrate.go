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
	"os"

	"github.com/spf13/cobra"

	"github.com/falconeri/falconeri/internal/dbpool"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the schema migration against $DATABASE_URL directly, without starting falconerid.",
	RunE: func(c *cobra.Command, args []string) error {
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		ctx := context.Background()
		pool, err := dbpool.New(ctx, databaseURL, 1)
		if err != nil {
			return err
		}
		defer pool.Close()
		return pool.Migrate(ctx)
	},
}
