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

package kubeops

import (
	"context"
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	kubefake "k8s.io/client-go/kubernetes/fake"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconeri/falconeri/internal/model"
)

func TestLiveJobNamesFiltersByManagedByLabel(t *testing.T) {
	cs := kubefake.NewSimpleClientset(
		&batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "owned-job",
				Namespace: "falconeri",
				Labels:    map[string]string{managedByLabel: managedByValue},
			},
		},
		&batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "unrelated-job",
				Namespace: "falconeri",
			},
		},
	)
	c := &Client{clientset: cs, namespace: "falconeri"}

	names, err := c.LiveJobNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"owned-job": true}, names)
}

func TestLivePodNamesFiltersByManagedByLabel(t *testing.T) {
	cs := kubefake.NewSimpleClientset(
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "worker-pod",
				Namespace: "falconeri",
				Labels:    map[string]string{managedByLabel: managedByValue},
			},
		},
	)
	c := &Client{clientset: cs, namespace: "falconeri"}

	names, err := c.LivePodNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"worker-pod": true}, names)
}

func TestCreateWorkerJobSetsLabelsAndVolumes(t *testing.T) {
	cs := kubefake.NewSimpleClientset()
	c := &Client{clientset: cs, namespace: "falconeri"}

	job := &model.Job{ID: uuid.New(), JobName: "train-model-abc123"}
	err := c.CreateWorkerJob(context.Background(), job, "falconeri/worker:latest", 3, []corev1.EnvVar{
		{Name: "AWS_ACCESS_KEY_ID", Value: "test"},
	})
	require.NoError(t, err)

	got, err := cs.BatchV1().Jobs("falconeri").Get(context.Background(), "train-model-abc123", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, job.ID.String(), got.Labels[JobIDLabel])
	assert.Equal(t, corev1.RestartPolicyNever, got.Spec.Template.Spec.RestartPolicy)
	assert.Len(t, got.Spec.Template.Spec.Volumes, 2)
	assert.EqualValues(t, 3, *got.Spec.Parallelism)

	container := got.Spec.Template.Spec.Containers[0]
	var sawJobID, sawExtraEnv bool
	for _, e := range container.Env {
		if e.Name == "FALCONERI_JOB_ID" && e.Value == job.ID.String() {
			sawJobID = true
		}
		if e.Name == "AWS_ACCESS_KEY_ID" && e.Value == "test" {
			sawExtraEnv = true
		}
	}
	assert.True(t, sawJobID, "expected FALCONERI_JOB_ID in the container env")
	assert.True(t, sawExtraEnv, "expected pipeline-spec env to be passed through")
}
