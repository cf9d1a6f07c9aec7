// Copyright 2021 Antrea Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"k8s.io/component-base/metrics/legacyregistry"
	"k8s.io/klog/v2"

	"github.com/dukku1/quagga/pkg/log"
	"github.com/dukku1/quagga/pkg/pimd/mroute"
)

type stateQuerier interface {
	Mroutes(stopCh <-chan struct{}) []mroute.MrouteInfo
	Upstreams(stopCh <-chan struct{}) []mroute.UpstreamInfo
	Status() mroute.StatusInfo
}

// newHandler returns the handler of the pimd HTTP server, which exposes the
// Prometheus metrics, dumps of the multicast routing state, the status of the
// mroute socket and the log
// verbosity.
func newHandler(q stateQuerier) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", legacyregistry.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/debug/mroutes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, q.Mroutes(r.Context().Done()))
	}).Methods(http.MethodGet)
	r.HandleFunc("/debug/upstreams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, q.Upstreams(r.Context().Done()))
	}).Methods(http.MethodGet)
	r.HandleFunc("/debug/mroute-status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(q.Status()); err != nil {
			klog.ErrorS(err, "Failed to encode response")
		}
	}).Methods(http.MethodGet)
	r.HandleFunc("/loglevel", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(log.GetCurrentLogLevel()))
	}).Methods(http.MethodGet)
	r.HandleFunc("/loglevel", func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("level")
		if err := log.SetLogLevel(level); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPut)
	return r
}

func writeJSON[T any](w http.ResponseWriter, v []T) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		v = []T{}
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.ErrorS(err, "Failed to encode response")
	}
}
