package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "github.com/shariarpapon/everime-world-generator/internal/persistence/log"
	"github.com/shariarpapon/everime-world-generator/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "runs":
			runsCmd(os.Args[2:])
			return
		case "faults":
			faultsCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "events":
			eventsCmd(os.Args[2:])
			return
		case "preview":
			previewCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "generate":
			generateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the snapshots under the data directory, oldest first.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	paths, err := snapshots(filepath.Join(*dataDir, "snapshots"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, p := range paths {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Printf("%s\t(unreadable: %v)\n", filepath.Base(p), err)
			continue
		}
		fmt.Printf("%s\trun=%d\tseed=%q\tchunks=%d\tspawns=%d\tdigest=%s\n",
			filepath.Base(p), h.RunID, h.Seed, h.Chunks, h.Spawns, h.Digest)
	}
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	path := fs.String("path", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		paths, err := snapshots(filepath.Join(*dataDir, "snapshots"))
		if err != nil || len(paths) == 0 {
			fmt.Fprintln(os.Stderr, "no snapshot found; provide -path or run the server until a world completes")
			os.Exit(2)
		}
		p = paths[len(paths)-1]
	}

	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	if err := writeSummary(os.Stdout, summarize(snap)); err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}
}

type snapshotSummary struct {
	Header      snapshot.Header `json:"header"`
	ChunkSize   int             `json:"chunk_size"`
	WorldSize   int             `json:"world_size_in_chunks"`
	HeightLaw   string          `json:"height_law"`
	Faults      int             `json:"faults"`
	Vertices    int             `json:"vertices"`
	Triangles   int             `json:"triangles"`
	MinHeight   float32         `json:"min_height"`
	MaxHeight   float32         `json:"max_height"`
	SpawnCounts map[string]int  `json:"spawn_counts"`
}

func summarize(snap snapshot.WorldV1) snapshotSummary {
	s := snapshotSummary{
		Header:      snap.Header,
		ChunkSize:   snap.ChunkSize,
		WorldSize:   snap.WorldSizeInChunks,
		HeightLaw:   snap.HeightLaw,
		Faults:      snap.Faults,
		SpawnCounts: map[string]int{},
	}
	first := true
	for _, c := range snap.Chunks {
		s.Vertices += len(c.Vertices) / 3
		s.Triangles += len(c.Triangles) / 3
		for _, h := range c.Heights {
			if first || h < s.MinHeight {
				s.MinHeight = h
			}
			if first || h > s.MaxHeight {
				s.MaxHeight = h
			}
			first = false
		}
	}
	for _, sp := range snap.Spawns {
		s.SpawnCounts[sp.Template]++
	}
	return s
}

func writeSummary(w io.Writer, s snapshotSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kind := fs.String("kind", "", "event kind filter (generate_start, complete, cleared, fault)")
	_ = fs.Parse(args)

	files, err := persistlog.Files(filepath.Join(*dataDir, "events"), "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, f := range files {
		err := persistlog.ReadJSONL(f, func(line []byte) error {
			if *kind != "" {
				var head struct {
					Kind string `json:"kind"`
				}
				if err := json.Unmarshal(line, &head); err != nil || head.Kind != *kind {
					return nil
				}
			}
			fmt.Println(string(line))
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", f, err)
			os.Exit(1)
		}
	}
}

func snapshots(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	// run-%06d names sort in run order.
	sort.Strings(out)
	return out, nil
}
