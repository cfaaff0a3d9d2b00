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

package restapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/falconeri/falconeri/internal/dbpool"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("restapi: encoding response body")
	}
}

func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeError maps an internal error to the plain-text response spec
// §4.1 describes: 403 for ownership mismatch (a zombie worker that lost
// its lease), 404 for a missing entity, 500 for everything else.
// ErrNoDatumAvailable never reaches here — reserveNextDatum handles it
// as a 200 before falling through to writeError.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dbpool.ErrOwnershipMismatch):
		logrus.WithError(err).Warn("restapi: ownership mismatch")
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, dbpool.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logrus.WithError(err).Error("restapi: request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
