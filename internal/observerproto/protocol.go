package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeViewer    = "VIEWER"
	TypeNode      = "NODE"
	TypeMesh      = "MESH"
	TypeSpawn     = "SPAWN"
	TypeActive    = "ACTIVE"
	TypeDestroy   = "DESTROY"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// SkipMeshes drops chunk geometry from the feed (nodes, spawns and
	// visibility still flow).
	SkipMeshes bool `json:"skip_meshes,omitempty"`
}

// Client -> Server. Moves the viewer that chunk visibility streams around.
type ViewerMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Position        [3]float32 `json:"position"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	State           string      `json:"state"`
	RunID           uint64      `json:"run_id"`
	WorldParams     WorldParams `json:"world_params"`
	ChunksReady     int         `json:"chunks_ready"`
	ChunksTotal     int         `json:"chunks_total"`
	Viewer          [3]float32  `json:"viewer"`
}

type WorldParams struct {
	Seed              string     `json:"seed"`
	CombinedSeed      int64      `json:"combined_seed"`
	WorldSizeInChunks int        `json:"world_size_in_chunks"`
	ChunkSize         int        `json:"chunk_size"`
	HeightMultiplier  float32    `json:"height_multiplier"`
	WorldOffset       [3]float32 `json:"world_offset"`
}

// HTTP response for POST /v1/generate.
type GenerateResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Server -> Client. A scene node was created or reparented.
type NodeMsg struct {
	Type     string     `json:"type"`
	ID       uint64     `json:"id"`
	Parent   uint64     `json:"parent,omitempty"`
	Name     string     `json:"name"`
	Position [3]float32 `json:"position"`
	Active   bool       `json:"active"`
}

// Server -> Client. Chunk geometry attached to a node. Vector buffers are
// flattened: 3 floats per vertex and normal, 2 per UV, 4 per color.
type MeshMsg struct {
	Type      string    `json:"type"`
	ID        uint64    `json:"id"`
	Parent    uint64    `json:"parent"`
	Material  string    `json:"material,omitempty"`
	Collider  bool      `json:"collider,omitempty"`
	Vertices  []float32 `json:"vertices"`
	Normals   []float32 `json:"normals"`
	UV        []float32 `json:"uv"`
	Colors    []float32 `json:"colors"`
	Triangles []int32   `json:"triangles"`
}

// Server -> Client. An object template was placed.
type SpawnMsg struct {
	Type     string     `json:"type"`
	ID       uint64     `json:"id"`
	Parent   uint64     `json:"parent,omitempty"`
	Template string     `json:"template"`
	Position [3]float32 `json:"position"`
	Rotation [4]float32 `json:"rotation"`
}

type ActiveMsg struct {
	Type   string `json:"type"`
	ID     uint64 `json:"id"`
	Active bool   `json:"active"`
}

type DestroyMsg struct {
	Type string `json:"type"`
	ID   uint64 `json:"id"`
}
