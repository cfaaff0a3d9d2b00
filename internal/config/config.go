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

// Package config holds the environment/flag-derived options shared by
// falconerid, falconeri-worker and the falconeri CLI (spec §6).
package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	defaultPoolSize    = 32
	defaultDevPoolSize = 4
	DefaultPort        = 8089
)

// FromEnv reads the environment variables spec.md §6 lists as the
// process's external configuration surface. Callers layer flag
// overrides on top where a process defines its own flags (see
// cmd/falconerid and cmd/falconeri-worker).
type FromEnv struct {
	DatabaseURL       string
	ProxyHost         string
	PoolSize          int
	GoogleCredentials string
	AWSAccessKeyID    string
	AWSSecretKey      string
	AWSEndpointURL    string
	AWSRegion         string
}

// Load reads configuration from the environment, applying the defaults
// spec.md §6 specifies. inCluster controls the default pool size (32 in
// Kubernetes, 4 outside it, per spec §5).
func Load(inCluster bool) (*FromEnv, error) {
	databaseURL, ok := os.LookupEnv("DATABASE_URL")
	if !ok || databaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}

	poolSize := defaultPoolSize
	if !inCluster {
		poolSize = defaultDevPoolSize
	}
	if raw, ok := os.LookupEnv("FALCONERID_POOL_SIZE"); ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: FALCONERID_POOL_SIZE: %w", err)
		}
		poolSize = n
	}

	return &FromEnv{
		DatabaseURL:       databaseURL,
		ProxyHost:         os.Getenv("FALCONERI_PROXY_HOST"),
		PoolSize:          poolSize,
		GoogleCredentials: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		AWSAccessKeyID:    os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSEndpointURL:    os.Getenv("AWS_ENDPOINT_URL"),
		AWSRegion:         os.Getenv("AWS_REGION"),
	}, nil
}

// PostgresSecretPath is where worker pods read the shared admin
// credential per spec §6.
const PostgresSecretPath = "/etc/falconeri/secrets/POSTGRES_PASSWORD"

// ReadPostgresSecret returns the POSTGRES_PASSWORD env var when it is
// set and non-empty, and otherwise reads the Kubernetes-mounted secret
// file at PostgresSecretPath.
func ReadPostgresSecret() (string, error) {
	if v, ok := os.LookupEnv("POSTGRES_PASSWORD"); ok && v != "" {
		return v, nil
	}
	b, err := os.ReadFile(PostgresSecretPath)
	if err != nil {
		return "", fmt.Errorf("config: reading postgres secret: %w", err)
	}
	return string(b), nil
}
