package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	persistlog "github.com/shariarpapon/everime-world-generator/internal/persistence/log"
	"github.com/shariarpapon/everime-world-generator/internal/persistence/snapshot"
	"github.com/shariarpapon/everime-world-generator/internal/scene"
	"github.com/shariarpapon/everime-world-generator/internal/sim/master"
	simruntime "github.com/shariarpapon/everime-world-generator/internal/sim/runtime"
	"github.com/shariarpapon/everime-world-generator/internal/sim/tuning"
	"github.com/shariarpapon/everime-world-generator/internal/sim/visibility"
	"github.com/shariarpapon/everime-world-generator/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
		seed       = flag.String("seed", "", "world seed override")
		viewerPos  = flag.String("viewer", "0,0,0", "initial viewer position x,y,z")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Default()
	}
	if s := strings.TrimSpace(*seed); s != "" {
		tune.World.Seed = s
		tune.World.UseRandomSeed = false
	}
	settings, err := tune.WorldSettings()
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}
	start, err := parseVec3(*viewerPos)
	if err != nil {
		logger.Fatalf("-viewer: %v", err)
	}

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	eventLog := persistlog.NewEventLogger(*dataDir)
	defer eventLog.Close()
	sinks := master.Sinks{eventLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}

	sc := scene.New()
	sc.RegisterTemplates(tune.Templates()...)
	viewer := scene.NewViewer(start)

	device := visibility.NewCPUDevice(tune.Streaming.Workers)
	defer device.Close()
	streamCfg, err := tune.StreamerConfig(log.New(os.Stdout, "[visibility] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}
	streamer := visibility.New(streamCfg, viewer, device)

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	snapCh := make(chan snapshot.WorldV1, 2)
	snapDir := filepath.Join(*dataDir, "snapshots")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := snapshot.Path(snapDir, snap.Header.RunID)
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				logger.Printf("run %d: snapshot %s", snap.Header.RunID, path)
				if idx != nil {
					idx.RecordSnapshot(snap.Header.RunID, path)
				}
			}
		}
	}()

	m := master.New(settings, sc, master.Options{
		Logger:  log.New(os.Stdout, "[master] ", log.LstdFlags|log.Lmicroseconds),
		Events:  sinks,
		OnWorld: streamer.Init,
		OnComplete: func(sum master.Summary) {
			select {
			case snapCh <- snapshot.FromSummary(sum):
			default:
				logger.Printf("run %d: snapshot writer busy; skipped", sum.RunID)
			}
		},
	})
	defer m.Close()

	loop := simruntime.New(simruntime.Config{
		FrameInterval:   tune.Runtime.FrameInterval(),
		FixedInterval:   tune.Runtime.FixedInterval(),
		GenerateOnStart: tune.Runtime.GenerateOnStart,
	}, m, streamer, logger)
	go func() {
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("runtime loop stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	routes(mux, m, loop, idx)

	obsSrv := observer.NewServer(sc, viewer, m, loop.Regenerate(), logger)
	mux.HandleFunc("/v1/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/generate", obsSrv.GenerateHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	if envBool("EVERIME_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (EVERIME_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (seed=%q, %dx%d chunks of %d)", *addr, settings.Seed,
		settings.WorldSizeInChunks, settings.WorldSizeInChunks, settings.ChunkSize)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func parseVec3(s string) (mgl32.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl32.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v mgl32.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return mgl32.Vec3{}, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
