package render

import (
	"hash/fnv"
	"io"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"gridcraft.app/internal/admission"
	"gridcraft.app/internal/assets"
	"gridcraft.app/internal/session"
	"gridcraft.app/internal/settings"
	"gridcraft.app/internal/world"
)

const (
	dropScale      = 0.3
	dropSpin       = 4 * time.Second
	nameplateLift  = 1.2
	stackLift      = 0.12
	noStage        = -1
	borderHeight   = 0.02
	blockElevation = 0.5
)

type Options struct {
	Scene    Scene
	Catalog  *assets.Catalog
	Meshes   *assets.MeshCache
	Settings settings.Settings
	Input    *admission.Input
	Logger   *log.Logger
}

type blockNode struct {
	h     Handle
	id    int
	stage int
}

type dropNode struct {
	h  Handle
	id int
}

// handNode is the held-item HUD icon; h is zero while nothing is held.
type handNode struct {
	h         Handle
	id, count int
}

type playerNode struct {
	body, plate Handle
}

// Orchestrator turns the world model into scene nodes once per frame. It owns
// the logical-to-visual index; the world never holds render handles.
type Orchestrator struct {
	sess     *session.GameSession
	scene    Scene
	catalog  *assets.Catalog
	meshes   *assets.MeshCache
	settings settings.Settings
	input    *admission.Input
	log      *log.Logger

	blocks  map[world.Pos]blockNode
	borders map[string]Handle
	drops   map[world.Pos][]dropNode
	players map[string]playerNode
	self    Handle
	hasSelf bool
	hand    handNode

	moves int
}

func NewOrchestrator(s *session.GameSession, opts Options) *Orchestrator {
	if opts.Scene == nil {
		opts.Scene = NewHeadlessScene()
	}
	if opts.Input == nil {
		opts.Input = &admission.Input{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{
		sess:     s,
		scene:    opts.Scene,
		catalog:  opts.Catalog,
		meshes:   opts.Meshes,
		settings: opts.Settings,
		input:    opts.Input,
		log:      opts.Logger,
		blocks:   map[world.Pos]blockNode{},
		borders:  map[string]Handle{},
		drops:    map[world.Pos][]dropNode{},
		players:  map[string]playerNode{},
	}
}

func (o *Orchestrator) Input() *admission.Input { return o.input }

func (o *Orchestrator) Session() *session.GameSession { return o.sess }

// Moves counts dispatched movement intents.
func (o *Orchestrator) Moves() int { return o.moves }

func (o *Orchestrator) BlockHandle(p world.Pos) (Handle, bool) {
	b, ok := o.blocks[p]
	return b.h, ok
}

// Tick runs one frame: move dispatch, drops, block materials when dirty,
// players, then submit.
func (o *Orchestrator) Tick(now time.Time) error {
	o.dispatchMove(now)
	o.syncDrops(now)
	if o.sess.TexturesUpdateNeeded() {
		o.syncBlocks()
	}
	o.syncPlayers()
	o.syncHand()
	return o.scene.Render()
}

func (o *Orchestrator) dispatchMove(now time.Time) {
	in, err := admission.NextMove(o.sess.Gate(), now, o.input, o.sess.World())
	if err != nil {
		return
	}
	if err := o.sess.Send(in); err != nil {
		o.log.Printf("move: %v", err)
		return
	}
	o.sess.MarkDispatched(now, o.settings.OptimisticCooldown())
	o.moves++
}

func (o *Orchestrator) syncDrops(now time.Time) {
	w := o.sess.World()
	yaw := float32(2 * math.Pi * float64(now.UnixMilli()%dropSpin.Milliseconds()) / float64(dropSpin.Milliseconds()))
	seen := map[world.Pos]bool{}
	for _, t := range w.DropTiles() {
		seen[t.Pos] = true
		cur := o.drops[t.Pos]
		// Stacks keep their slot while the id at that index is unchanged.
		for i, st := range t.Stacks {
			pos := dropPosition(t.Pos, i)
			switch {
			case i < len(cur) && cur[i].id == st.ID:
				o.scene.Move(cur[i].h, pos)
			case i < len(cur):
				o.scene.Remove(cur[i].h)
				cur[i] = dropNode{h: o.scene.Add(o.dropNode(st.ID, t.Pos, pos)), id: st.ID}
			default:
				cur = append(cur, dropNode{h: o.scene.Add(o.dropNode(st.ID, t.Pos, pos)), id: st.ID})
			}
			o.scene.Rotate(cur[i].h, yaw)
		}
		for _, d := range cur[len(t.Stacks):] {
			o.scene.Remove(d.h)
		}
		o.drops[t.Pos] = cur[:len(t.Stacks)]
	}
	for p, cur := range o.drops {
		if seen[p] {
			continue
		}
		for _, d := range cur {
			o.scene.Remove(d.h)
		}
		delete(o.drops, p)
	}
}

func (o *Orchestrator) dropNode(id int, tile world.Pos, pos mgl32.Vec3) Node {
	scale := o.settings.ModifyScaleSize
	if scale <= 0 {
		scale = 1
	}
	n := Node{
		Kind:     KindDrop,
		Name:     world.TileKey(tile.X, tile.Z),
		Position: pos,
		Scale:    float32(dropScale * scale),
	}
	a := o.dropAsset(id)
	if a == nil {
		return n
	}
	n.Name = a.Name
	n.Material = a.Top()
	if a.Shape == assets.ShapeItemHandheld && o.meshes != nil {
		n.Mesh = o.meshes.Get(a.Top(), assets.DefaultMeshOptions())
	}
	return n
}

func (o *Orchestrator) dropAsset(id int) *assets.ObjectAsset {
	if o.catalog == nil {
		return nil
	}
	if a, ok := o.catalog.Item(id); ok {
		return a
	}
	if a, ok := o.catalog.Block(id); ok {
		return a
	}
	return nil
}

// syncBlocks reconciles the block index with resident chunks. Evicted chunks
// lose their nodes here.
func (o *Orchestrator) syncBlocks() {
	w := o.sess.World()
	brk, breaking := w.BreakProgress()
	live := map[world.Pos]bool{}
	for _, cc := range w.ChunkCoords() {
		for lx := 0; lx < world.ChunkSize; lx++ {
			for lz := 0; lz < world.ChunkSize; lz++ {
				x, z := world.FromChunk(cc[0], cc[1], lx, lz)
				id, _ := w.Block(x, z)
				if id == 0 {
					continue
				}
				p := world.Pos{X: x, Z: z}
				live[p] = true
				stage := noStage
				if breaking && brk.Block == p {
					stage = assets.StageFor(brk.Progress, brk.Hardness)
				}
				o.syncBlock(p, id, stage)
			}
		}
	}
	for p, b := range o.blocks {
		if !live[p] {
			o.scene.Remove(b.h)
			delete(o.blocks, p)
		}
	}
	o.syncBorders(w)
}

func (o *Orchestrator) syncBlock(p world.Pos, id, stage int) {
	b, ok := o.blocks[p]
	if ok && b.id == id && b.stage == stage {
		return
	}
	mat := o.blockMaterial(id, stage)
	if !ok {
		h := o.scene.Add(Node{
			Kind:     KindBlock,
			Name:     world.TileKey(p.X, p.Z),
			Position: mgl32.Vec3{float32(p.X) + 0.5, blockElevation, float32(p.Z) + 0.5},
			Scale:    1,
			Material: mat,
		})
		o.blocks[p] = blockNode{h: h, id: id, stage: stage}
		return
	}
	o.scene.SetMaterial(b.h, mat)
	o.blocks[p] = blockNode{h: b.h, id: id, stage: stage}
}

func (o *Orchestrator) blockMaterial(id, stage int) []byte {
	if o.catalog == nil {
		return nil
	}
	a, ok := o.catalog.Block(id)
	if !ok {
		return assets.Placeholder()
	}
	top := a.Top()
	if stage == noStage {
		return top
	}
	composite, err := assets.BreakOverlay(top, o.catalog.DestroyStages[stage])
	if err != nil {
		o.log.Printf("break overlay %s stage %d: %v", a.Name, stage, err)
		return top
	}
	return composite
}

func (o *Orchestrator) syncBorders(w *world.World) {
	live := map[string]bool{}
	if o.settings.ShowChunkBorders {
		for _, cc := range w.ChunkCoords() {
			key := world.ChunkKey(cc[0], cc[1])
			live[key] = true
			if _, ok := o.borders[key]; ok {
				continue
			}
			x, z := world.FromChunk(cc[0], cc[1], 0, 0)
			half := float32(world.ChunkSize) / 2
			o.borders[key] = o.scene.Add(Node{
				Kind:     KindBorder,
				Name:     key,
				Position: mgl32.Vec3{float32(x) + half, borderHeight, float32(z) + half},
				Scale:    float32(world.ChunkSize),
			})
		}
	}
	for key, h := range o.borders {
		if !live[key] {
			o.scene.Remove(h)
			delete(o.borders, key)
		}
	}
}

func (o *Orchestrator) syncPlayers() {
	w := o.sess.World()
	me, hasMe := w.Self()
	if hasMe {
		pos := playerPosition(me)
		if !o.hasSelf {
			o.self = o.scene.Add(Node{Kind: KindPlayer, Name: me.Nick, Position: pos, Scale: 1, Material: o.skin(me.Nick)})
			o.hasSelf = true
		} else {
			o.scene.Move(o.self, pos)
		}
	}

	players := w.Players()
	for nick, p := range players {
		// Sharing the local player's tile hides the remote model.
		if hasMe && p.Pos() == me.Pos() {
			o.removePlayer(nick)
			continue
		}
		pos := playerPosition(p)
		plate := pos.Add(mgl32.Vec3{0, nameplateLift, 0})
		n, ok := o.players[nick]
		if !ok {
			o.players[nick] = playerNode{
				body:  o.scene.Add(Node{Kind: KindPlayer, Name: nick, Position: pos, Scale: 1, Material: o.skin(nick)}),
				plate: o.scene.Add(Node{Kind: KindNameplate, Name: nick, Position: plate, Scale: 1, Label: nick}),
			}
			continue
		}
		o.scene.Move(n.body, pos)
		o.scene.Move(n.plate, plate)
	}
	for nick := range o.players {
		if _, ok := players[nick]; !ok {
			o.removePlayer(nick)
		}
	}
}

func (o *Orchestrator) removePlayer(nick string) {
	n, ok := o.players[nick]
	if !ok {
		return
	}
	o.scene.Remove(n.body)
	o.scene.Remove(n.plate)
	delete(o.players, nick)
}

func (o *Orchestrator) syncHand() {
	slot := o.sess.World().Hand()
	if slot == nil {
		if o.hand.h != 0 {
			o.scene.Remove(o.hand.h)
			o.hand = handNode{}
		}
		return
	}
	if o.hand.h != 0 && o.hand.id == slot.ID && o.hand.count == slot.Count {
		return
	}
	var icon []byte
	if o.catalog != nil {
		icon, _ = o.catalog.Icon(slot.ID)
	}
	if o.hand.h != 0 {
		o.scene.Remove(o.hand.h)
	}
	o.hand = handNode{
		h:     o.scene.Add(Node{Kind: KindHand, Name: strconv.Itoa(slot.ID), Scale: 1, Material: icon, Label: strconv.Itoa(slot.Count)}),
		id:    slot.ID,
		count: slot.Count,
	}
}

// skin picks a stable skin per nickname.
func (o *Orchestrator) skin(nick string) []byte {
	if o.catalog == nil || len(assets.PlayerSkins) == 0 {
		return nil
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(nick))
	return o.catalog.Skins[assets.PlayerSkins[h.Sum32()%uint32(len(assets.PlayerSkins))]]
}

func dropPosition(p world.Pos, i int) mgl32.Vec3 {
	return mgl32.Vec3{float32(p.X) + 0.5, 0.25 + stackLift*float32(i), float32(p.Z) + 0.5}
}

func playerPosition(p world.Player) mgl32.Vec3 {
	return mgl32.Vec3{float32(p.X) + 0.5, 0, float32(p.Z) + 0.5}
}
