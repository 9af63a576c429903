package observer

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"github.com/shariarpapon/everime-world-generator/internal/observerproto"
	"github.com/shariarpapon/everime-world-generator/internal/scene"
	"github.com/shariarpapon/everime-world-generator/internal/sim/master"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/heightmap"
	"github.com/shariarpapon/everime-world-generator/internal/sim/world/terrain/mesh"
)

type fixedStatus struct{ info master.Info }

func (f fixedStatus) Info() master.Info { return f.info }

func newTestServer(t *testing.T, sc *scene.Scene, viewer *scene.Viewer, regen chan struct{}) *httptest.Server {
	t.Helper()
	status := fixedStatus{info: master.Info{
		State:             master.StateDraining,
		RunID:             3,
		Seed:              "everime",
		WorldSizeInChunks: 2,
		ChunkSize:         4,
		ChunksReady:       1,
		ChunksTotal:       4,
	}}
	s := NewServer(sc, viewer, status, regen, log.New(io.Discard, "", 0))
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/generate", s.GenerateHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBootstrap(t *testing.T) {
	viewer := scene.NewViewer(mgl32.Vec3{1, 2, 3})
	srv := newTestServer(t, scene.New(), viewer, make(chan struct{}, 1))

	resp, err := http.Get(srv.URL + "/v1/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.ProtocolVersion != observerproto.Version || b.State != "draining" || b.RunID != 3 {
		t.Fatalf("unexpected bootstrap: %+v", b)
	}
	if b.WorldParams.ChunkSize != 4 || b.ChunksTotal != 4 || b.Viewer != [3]float32{1, 2, 3} {
		t.Fatalf("unexpected params: %+v", b)
	}

	post, err := http.Post(srv.URL+"/v1/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST bootstrap status=%d", post.StatusCode)
	}
}

func TestGenerateQueuesOnce(t *testing.T) {
	regen := make(chan struct{}, 1)
	srv := newTestServer(t, scene.New(), scene.NewViewer(mgl32.Vec3{}), regen)

	first, err := http.Post(srv.URL+"/v1/generate", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	first.Body.Close()
	if first.StatusCode != http.StatusAccepted {
		t.Fatalf("first status=%d", first.StatusCode)
	}
	second, err := http.Post(srv.URL+"/v1/generate", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("second status=%d", second.StatusCode)
	}
	if len(regen) != 1 {
		t.Fatalf("regen pending=%d", len(regen))
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return head.Type, b
}

func TestFeedReplaysAndStreams(t *testing.T) {
	sc := scene.New()
	sc.RegisterTemplates("tree")
	viewer := scene.NewViewer(mgl32.Vec3{})
	root := sc.CreateNode("World", mgl32.Vec3{})
	srv := newTestServer(t, sc, viewer, make(chan struct{}, 1))

	conn := dial(t, srv)
	sub, _ := json.Marshal(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	typ, b := readType(t, conn)
	if typ != observerproto.TypeNode {
		t.Fatalf("first message type=%s", typ)
	}
	var node observerproto.NodeMsg
	_ = json.Unmarshal(b, &node)
	if node.ID != uint64(root) || node.Name != "World" {
		t.Fatalf("unexpected replay: %+v", node)
	}

	m := mesh.Build(heightmap.NewField(2), 1, nil, nil, mesh.LawIdentity)
	r := sc.CreateRenderable(m, world.RenderOptions{Material: "terrain"})
	sc.Attach(r, root)
	typ, b = readType(t, conn)
	if typ != observerproto.TypeMesh {
		t.Fatalf("expected MESH, got %s", typ)
	}
	var mm observerproto.MeshMsg
	_ = json.Unmarshal(b, &mm)
	if mm.Parent != uint64(root) || len(mm.Vertices) != 3*len(m.Vertices) || len(mm.Colors) != 4*len(m.Colors) {
		t.Fatalf("unexpected mesh: parent=%d verts=%d colors=%d", mm.Parent, len(mm.Vertices), len(mm.Colors))
	}
	if len(mm.Normals) != len(mm.Vertices) {
		t.Fatalf("normals=%d vertices=%d", len(mm.Normals), len(mm.Vertices))
	}
	if up := (mgl32.Vec3{mm.Normals[0], mm.Normals[1], mm.Normals[2]}); !up.ApproxEqual(mgl32.Vec3{0, 1, 0}) {
		t.Fatalf("unexpected normals: %v", mm.Normals)
	}

	if _, err := sc.Instantiate("tree", mgl32.Vec3{1, 2, 3}, mgl32.QuatIdent(), root); err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if typ, _ = readType(t, conn); typ != observerproto.TypeSpawn {
		t.Fatalf("expected SPAWN, got %s", typ)
	}

	sc.SetActive(root, false)
	typ, b = readType(t, conn)
	var am observerproto.ActiveMsg
	_ = json.Unmarshal(b, &am)
	if typ != observerproto.TypeActive || am.Active {
		t.Fatalf("unexpected active message: %s %+v", typ, am)
	}

	sc.Destroy(root)
	if typ, _ = readType(t, conn); typ != observerproto.TypeDestroy {
		t.Fatalf("expected DESTROY, got %s", typ)
	}

	vm, _ := json.Marshal(observerproto.ViewerMsg{Type: observerproto.TypeViewer, ProtocolVersion: observerproto.Version, Position: [3]float32{8, 0, -4}})
	if err := conn.WriteMessage(websocket.TextMessage, vm); err != nil {
		t.Fatalf("write viewer: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for viewer.Position() != (mgl32.Vec3{8, 0, -4}) {
		if time.Now().After(deadline) {
			t.Fatalf("viewer not updated: %v", viewer.Position())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFeedRejectsBadHandshake(t *testing.T) {
	srv := newTestServer(t, scene.New(), scene.NewViewer(mgl32.Vec3{}), make(chan struct{}, 1))
	conn := dial(t, srv)
	bad, _ := json.Marshal(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: "9.9"})
	if err := conn.WriteMessage(websocket.TextMessage, bad); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestSkipMeshes(t *testing.T) {
	e := scene.Event{Kind: scene.EventNode, NodeKind: scene.KindRenderable, Mesh: mesh.NewData(2)}
	if _, ok, err := encodeEvent(e, true); ok || err != nil {
		t.Fatalf("mesh should be skipped: ok=%v err=%v", ok, err)
	}
	if _, ok, err := encodeEvent(e, false); !ok || err != nil {
		t.Fatalf("mesh should be sent: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := encodeEvent(scene.Event{Kind: scene.EventOverflow}, false); ok {
		t.Fatalf("overflow is not forwarded")
	}
}
