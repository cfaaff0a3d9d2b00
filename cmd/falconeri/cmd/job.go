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
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/falconeri/falconeri/internal/model"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Submit, list, describe and retry jobs.",
}

var jobRunCmd = &cobra.Command{
	Use:   "run <pipeline-spec.yaml>",
	Short: "Submit a pipeline spec and create a new job.",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if err := requireAuthPassword(); err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading pipeline spec: %w", err)
		}
		job, err := newClient().CreateJob(context.Background(), data)
		if err != nil {
			return err
		}
		fmt.Printf("created job %s (%s)\n", job.JobName, job.ID)
		return nil
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every job.",
	RunE: func(c *cobra.Command, args []string) error {
		if err := requireAuthPassword(); err != nil {
			return err
		}
		jobs, err := newClient().ListJobs(context.Background())
		if err != nil {
			return err
		}
		for _, j := range jobs {
			fmt.Printf("%s\t%s\t%s\n", j.ID, j.JobName, j.Status)
		}
		return nil
	},
}

var jobDescribeCmd = &cobra.Command{
	Use:   "describe <job-id>",
	Short: "Show a job's status counts and notable datums.",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if err := requireAuthPassword(); err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parsing job id: %w", err)
		}
		resp, err := newClient().DescribeJob(context.Background(), id)
		if err != nil {
			return err
		}
		fmt.Printf("job %s (%s): %s\n", resp.Job.JobName, resp.Job.ID, resp.Job.Status)
		fmt.Printf("  ready=%d running=%d done=%d error=%d\n",
			resp.Counts.Ready, resp.Counts.Running, resp.Counts.Done, resp.Counts.Error)
		for _, d := range resp.RunningDatums {
			fmt.Printf("  running: %s on pod %s\n", d.ID, podNameOrUnknown(d))
		}
		for _, d := range resp.ErrorDatums {
			fmt.Printf("  error:   %s %s\n", d.ID, errorMessageOrUnknown(d))
		}
		return nil
	},
}

var jobRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Clone a finished job's pipeline spec into a fresh job.",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if err := requireAuthPassword(); err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parsing job id: %w", err)
		}
		job, err := newClient().RetryJob(context.Background(), id)
		if err != nil {
			return err
		}
		fmt.Printf("created retry job %s (%s)\n", job.JobName, job.ID)
		return nil
	},
}

var jobWaitCmd = &cobra.Command{
	Use:   "wait <job-id>",
	Short: "Poll a job until it reaches a terminal status.",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if err := requireAuthPassword(); err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parsing job id: %w", err)
		}
		client := newClient()
		for {
			job, err := client.GetJob(context.Background(), id)
			if err != nil {
				return err
			}
			if job.Status.HasFinished() {
				fmt.Println(job.Status)
				return nil
			}
			time.Sleep(5 * time.Second)
		}
	},
}

func podNameOrUnknown(d model.Datum) string {
	if d.PodName == nil {
		return "<unknown>"
	}
	return *d.PodName
}

func errorMessageOrUnknown(d model.Datum) string {
	if d.ErrorMessage == nil {
		return "<no message>"
	}
	return *d.ErrorMessage
}

func init() {
	jobCmd.AddCommand(jobRunCmd, jobListCmd, jobDescribeCmd, jobRetryCmd, jobWaitCmd)
}
