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

// Package kubeops is the babysitter and controller's thin Kubernetes
// surface: the live-Job/live-Pod name sets the babysitter diffs against
// persisted state (spec §4.5), and worker-Job creation at job-creation
// time (spec §4.4, treated as fire-and-forget per spec §1's scope).
package kubeops

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/falconeri/falconeri/internal/model"
)

const (
	// JobIDLabel tags every Kubernetes Job/Pod Falconeri creates with
	// the owning Falconeri job id, mirroring the teacher's
	// kube.CreatedByProw convention for "things this system made".
	JobIDLabel     = "falconeri.io/job-id"
	managedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "falconeri"
)

// Client wraps k8s.io/client-go for the namespace Falconeri runs in.
type Client struct {
	clientset kubernetes.Interface
	namespace string
}

// NewInCluster builds a Client using the in-pod service account, for
// falconerid running inside Kubernetes.
func NewInCluster(namespace string) (*Client, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("kubeops: in-cluster config: %w", err)
	}
	return fromConfig(cfg, namespace)
}

// NewFromKubeconfig builds a Client from a local kubeconfig file, for
// falconerid running outside the cluster (--in-cluster=false). The
// CLI's `falconeri deploy` shells out to kubectl and does not use it.
func NewFromKubeconfig(path, namespace string) (*Client, error) {
	cfg, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("kubeops: loading kubeconfig: %w", err)
	}
	return fromConfig(cfg, namespace)
}

func fromConfig(cfg *rest.Config, namespace string) (*Client, error) {
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("kubeops: building clientset: %w", err)
	}
	return &Client{clientset: cs, namespace: namespace}, nil
}

// LiveJobNames lists every Kubernetes Job Falconeri owns, keyed by the
// Kubernetes object name, which CreateWorkerJob sets to the Falconeri
// job_name (spec §4.5 pass 1: "live Kubernetes job names").
func (c *Client) LiveJobNames(ctx context.Context) (map[string]bool, error) {
	jobs, err := c.clientset.BatchV1().Jobs(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: managedByLabel + "=" + managedByValue,
	})
	if err != nil {
		return nil, fmt.Errorf("kubeops: listing jobs: %w", err)
	}
	names := make(map[string]bool, len(jobs.Items))
	for _, j := range jobs.Items {
		names[j.Name] = true
	}
	return names, nil
}

// LivePodNames lists every worker Pod Falconeri owns, for the zombie-
// datum sweep (spec §4.5 pass 2).
func (c *Client) LivePodNames(ctx context.Context) (map[string]bool, error) {
	pods, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: managedByLabel + "=" + managedByValue,
	})
	if err != nil {
		return nil, fmt.Errorf("kubeops: listing pods: %w", err)
	}
	names := make(map[string]bool, len(pods.Items))
	for _, p := range pods.Items {
		names[p.Name] = true
	}
	return names, nil
}

// downwardEnv builds the env vars every worker pod needs regardless of
// the pipeline spec: which Falconeri job it belongs to, and its own
// pod/node identity for the reservation and ownership-check calls (spec
// §4.2, §4.6).
func downwardEnv(job *model.Job) []corev1.EnvVar {
	return []corev1.EnvVar{
		{Name: "FALCONERI_JOB_ID", Value: job.ID.String()},
		{Name: "POD_NAME", ValueFrom: &corev1.EnvVarSource{
			FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"},
		}},
		{Name: "NODE_NAME", ValueFrom: &corev1.EnvVarSource{
			FieldRef: &corev1.ObjectFieldSelector{FieldPath: "spec.nodeName"},
		}},
		{Name: "POSTGRES_PASSWORD", ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: "falconeri"},
				Key:                  "POSTGRES_PASSWORD",
			},
		}},
	}
}

// CreateWorkerJob fires off the Kubernetes Job object backing a
// Falconeri job (spec §4.4), running parallelism copies of image
// concurrently. It is fire-and-forget: a failure here is logged by the
// caller and the job proceeds to rely on the babysitter's vanished-job
// sweep (spec §4.5 pass 1) to eventually mark it Error if no pods ever
// materialize. extraEnv carries the pipeline spec's own Env map
// (object-store credentials, per spec §6) on top of the standard
// downward-API identity variables.
func (c *Client) CreateWorkerJob(ctx context.Context, job *model.Job, image string, parallelism int32, extraEnv []corev1.EnvVar) error {
	backoffLimit := int32(0) // Falconeri's own retry logic owns reruns, not Kubernetes'.
	env := append(downwardEnv(job), extraEnv...)

	jobSpec := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name: job.JobName,
			Labels: map[string]string{
				managedByLabel: managedByValue,
				JobIDLabel:     job.ID.String(),
			},
		},
		Spec: batchv1.JobSpec{
			Parallelism:  &parallelism,
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						managedByLabel: managedByValue,
						JobIDLabel:     job.ID.String(),
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:  "falconeri-worker",
							Image: image,
							Env:   env,
							VolumeMounts: []corev1.VolumeMount{
								{Name: "pfs", MountPath: "/pfs"},
								{Name: "scratch", MountPath: "/scratch"},
							},
						},
					},
					Volumes: []corev1.Volume{
						{Name: "pfs", VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}}},
						{Name: "scratch", VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}}},
					},
				},
			},
		},
	}

	_, err := c.clientset.BatchV1().Jobs(c.namespace).Create(ctx, jobSpec, metav1.CreateOptions{})
	return err
}
