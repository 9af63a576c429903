package master

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/shariarpapon/everime-world-generator/internal/sim/world"
)

type SpawnObject struct {
	RunID    uint64
	Template string
	Chunk    *world.Chunk
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

// selectSpawns walks the chunk's vertices in mesh order and rolls one spawn
// candidate per vertex. The number and order of rng draws is part of the
// world's determinism: global roll, object pick, object roll, then a yaw
// draw only for accepted objects with RandomizeYaw.
func selectSpawns(rng *rand.Rand, c *world.Chunk, s world.SpawnSettings, runID uint64) []SpawnObject {
	if len(s.Objects) == 0 || c.Mesh() == nil {
		return nil
	}
	var out []SpawnObject
	origin := c.GlobalPosition()
	for _, v := range c.Mesh().Vertices {
		if float32(rng.Float64()) > s.GlobalChance {
			continue
		}
		obj := s.Objects[rng.Intn(len(s.Objects))]
		roll := float32(rng.Float64())
		h := v.Y() + origin.Y()
		if roll > obj.Chance || h < obj.MinHeight || h > obj.MaxHeight {
			continue
		}
		rot := mgl32.QuatIdent()
		if obj.RandomizeYaw {
			yaw := float32(rng.Float64() * 360)
			rot = mgl32.QuatRotate(mgl32.DegToRad(yaw), mgl32.Vec3{0, 1, 0})
		}
		out = append(out, SpawnObject{
			RunID:    runID,
			Template: obj.Template,
			Chunk:    c,
			Position: v.Add(origin),
			Rotation: rot,
		})
	}
	return out
}
