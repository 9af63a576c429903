package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/shariarpapon/everime-world-generator/internal/persistence/indexdb"
	"github.com/shariarpapon/everime-world-generator/internal/sim/master"
)

type frameCounter interface {
	Frames() uint64
	FixedSteps() uint64
}

func routes(mux *http.ServeMux, m *master.Master, loop frameCounter, idx *indexdb.SQLiteIndex) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		info := m.Info()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP everime_run_id Current generation run.\n")
		fmt.Fprintf(rw, "# TYPE everime_run_id gauge\n")
		fmt.Fprintf(rw, "everime_run_id %d\n", info.RunID)

		fmt.Fprintf(rw, "# HELP everime_run_state Generation state (1 for the current state).\n")
		fmt.Fprintf(rw, "# TYPE everime_run_state gauge\n")
		for _, st := range []master.State{master.StateIdle, master.StateRunning, master.StateDraining} {
			v := 0
			if st == info.State {
				v = 1
			}
			fmt.Fprintf(rw, "everime_run_state{state=%q} %d\n", st.String(), v)
		}

		fmt.Fprintf(rw, "# HELP everime_chunks Chunks instantiated and expected for the current run.\n")
		fmt.Fprintf(rw, "# TYPE everime_chunks gauge\n")
		fmt.Fprintf(rw, "everime_chunks{kind=%q} %d\n", "ready", info.ChunksReady)
		fmt.Fprintf(rw, "everime_chunks{kind=%q} %d\n", "total", info.ChunksTotal)

		fmt.Fprintf(rw, "# HELP everime_faults Retained faults.\n")
		fmt.Fprintf(rw, "# TYPE everime_faults gauge\n")
		fmt.Fprintf(rw, "everime_faults %d\n", len(m.Faults()))

		if loop != nil {
			fmt.Fprintf(rw, "# HELP everime_frames_total Presentation frames stepped.\n")
			fmt.Fprintf(rw, "# TYPE everime_frames_total counter\n")
			fmt.Fprintf(rw, "everime_frames_total{kind=%q} %d\n", "frame", loop.Frames())
			fmt.Fprintf(rw, "everime_frames_total{kind=%q} %d\n", "fixed", loop.FixedSteps())
		}

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP everime_index_queue_depth Run index backlog.\n")
			fmt.Fprintf(rw, "# TYPE everime_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "everime_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP everime_index_dropped_total Index writes dropped under load.\n")
			fmt.Fprintf(rw, "# TYPE everime_index_dropped_total counter\n")
			fmt.Fprintf(rw, "everime_index_dropped_total{kind=%q} %d\n", "event", st.DropEventTotal)
			fmt.Fprintf(rw, "everime_index_dropped_total{kind=%q} %d\n", "snapshot", st.DropSnapshotTotal)
		}
	})

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/faults", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(m.Faults())
	})
	mux.HandleFunc("/admin/v1/runs", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if idx == nil {
			http.Error(rw, "run index disabled", http.StatusNotFound)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := idx.Runs(r.Context(), limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(runs)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
