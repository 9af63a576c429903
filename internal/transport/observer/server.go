package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"github.com/shariarpapon/everime-world-generator/internal/observerproto"
	"github.com/shariarpapon/everime-world-generator/internal/scene"
	"github.com/shariarpapon/everime-world-generator/internal/sim/master"
)

const subscriberBuffer = 4096

// Status reports the generation run the feed describes.
type Status interface {
	Info() master.Info
}

type Server struct {
	scene      *scene.Scene
	viewer     *scene.Viewer
	status     Status
	regenerate chan<- struct{}
	log        *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(sc *scene.Scene, viewer *scene.Viewer, status Status, regenerate chan<- struct{}, logger *log.Logger) *Server {
	return &Server{
		scene:      sc,
		viewer:     viewer,
		status:     status,
		regenerate: regenerate,
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		info := s.status.Info()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			State:           info.State.String(),
			RunID:           info.RunID,
			WorldParams: observerproto.WorldParams{
				Seed:              info.Seed,
				CombinedSeed:      info.CombinedSeed,
				WorldSizeInChunks: info.WorldSizeInChunks,
				ChunkSize:         info.ChunkSize,
				HeightMultiplier:  info.HeightMultiplier,
				WorldOffset:       vec3(info.WorldOffset),
			},
			ChunksReady: info.ChunksReady,
			ChunksTotal: info.ChunksTotal,
			Viewer:      vec3(s.viewer.Position()),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// GenerateHandler queues a regeneration. The runtime loop owns the actual
// call, so a full request channel answers 503 instead of blocking.
func (s *Server) GenerateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		select {
		case s.regenerate <- struct{}{}:
			rw.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(rw).Encode(observerproto.GenerateResponse{Accepted: true})
		default:
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(observerproto.GenerateResponse{Reason: "regeneration already pending"})
		}
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		events, unsubscribe := s.scene.Subscribe(subscriberBuffer)
		defer unsubscribe()
		s.log.Printf("observer %s subscribed remote=%s skip_meshes=%v", sid, r.RemoteAddr, sub.SkipMeshes)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case e, ok := <-events:
					if !ok || e.Kind == scene.EventOverflow {
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync"), time.Now().Add(time.Second))
						writeErr <- nil
						return
					}
					b, send, err := encodeEvent(e, sub.SkipMeshes)
					if err != nil {
						s.log.Printf("observer %s encode: %v", sid, err)
						continue
					}
					if !send {
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: viewer position updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var vm observerproto.ViewerMsg
			if err := json.Unmarshal(msg, &vm); err != nil {
				continue
			}
			if vm.Type != observerproto.TypeViewer || vm.ProtocolVersion != observerproto.Version {
				continue
			}
			if !finite(vm.Position) {
				continue
			}
			s.viewer.SetPosition(mgl32.Vec3{vm.Position[0], vm.Position[1], vm.Position[2]})
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("observer %s closed", sid)
	}
}

func finite(p [3]float32) bool {
	for _, v := range p {
		if v != v || v > maxCoord || v < -maxCoord {
			return false
		}
	}
	return true
}

const maxCoord = 1e9

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
