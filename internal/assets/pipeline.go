package assets

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// PlayerSkins are fetched from <storage>/other/<name>.png.
var PlayerSkins = []string{"alex", "steve"}

// Catalog is everything the renderer needs, resolved by name.
type Catalog struct {
	Manifest      Manifest
	Objects       map[string]*ObjectAsset
	Icons         map[string][]byte
	DestroyStages [DestroyStages][]byte
	Skins         map[string][]byte
}

func (c *Catalog) Block(id int) (*ObjectAsset, bool) {
	name, ok := c.Manifest.BlockName(id)
	if !ok {
		return nil, false
	}
	a, ok := c.Objects[name]
	return a, ok
}

func (c *Catalog) Item(id int) (*ObjectAsset, bool) {
	name, ok := c.Manifest.ItemName(id)
	if !ok {
		return nil, false
	}
	a, ok := c.Objects[name]
	return a, ok
}

// Icon finds the baked icon for a block or item code. Items win over blocks
// when both namespaces use the id.
func (c *Catalog) Icon(id int) ([]byte, bool) {
	if name, ok := c.Manifest.ItemName(id); ok {
		if b, ok := c.Icons[name]; ok {
			return b, true
		}
	}
	if name, ok := c.Manifest.BlockName(id); ok {
		b, ok := c.Icons[name]
		return b, ok
	}
	return nil, false
}

// Pipeline runs validate -> resolve -> fetch -> cache -> materialize -> bake
// once per session.
type Pipeline struct {
	Loader     *Loader
	Textures   Store
	Static     Store
	Models     Store
	StorageURL string
	Logger     *log.Logger
	// Concurrency bounds parallel loads; <= 0 means 8.
	Concurrency int
}

func (p *Pipeline) Load(ctx context.Context, m Manifest) (*Catalog, error) {
	expected := ExpectedKeys(m)
	if _, err := Validate(ctx, p.Textures, expected, p.Logger); err != nil {
		return nil, fmt.Errorf("validate cache: %w", err)
	}

	work := jobs(m, p.logf)
	cat := &Catalog{
		Manifest: m,
		Objects:  make(map[string]*ObjectAsset, len(work)),
		Icons:    make(map[string][]byte, len(work)),
		Skins:    make(map[string][]byte, len(PlayerSkins)),
	}
	var mu sync.Mutex

	p.each(len(work), func(i int) {
		a, err := Materialize(ctx, p.Loader, p.Textures, work[i].name, work[i].model)
		if err != nil {
			p.logf("%v", err)
			return
		}
		mu.Lock()
		cat.Objects[a.Name] = a
		mu.Unlock()
	})
	p.each(len(PlayerSkins), func(i int) {
		blob, _ := p.Loader.Load(ctx, p.Static, p.storage("other/"+PlayerSkins[i]+".png"))
		mu.Lock()
		cat.Skins[PlayerSkins[i]] = blob
		mu.Unlock()
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := sortedNames(cat.Objects)
	p.each(len(names), func(i int) {
		icon, err := p.icon(ctx, cat.Objects[names[i]])
		if err != nil {
			p.logf("icon %s: %v", names[i], err)
			return
		}
		mu.Lock()
		cat.Icons[names[i]] = icon
		mu.Unlock()
	})

	p.each(DestroyStages, func(i int) {
		name := "destroy_stage_" + strconv.Itoa(i)
		blob, _ := p.Loader.Load(ctx, p.Static, p.storage(name+".png"))
		mu.Lock()
		cat.DestroyStages[i] = blob
		cat.Objects[name] = &ObjectAsset{Name: name, Shape: ShapeCubeAll, Faces: map[string][]byte{"all": blob}}
		mu.Unlock()
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.logf("assets ready: %d objects, %d icons", len(cat.Objects), len(cat.Icons))
	return cat, nil
}

// icon returns the prebaked icon if the models bucket has one, else bakes
// and stores it.
func (p *Pipeline) icon(ctx context.Context, a *ObjectAsset) ([]byte, error) {
	key := ModelKey(a.Name)
	if blob, ok, err := p.Models.Get(ctx, key); err == nil && ok {
		return blob, nil
	}
	blob, err := BakeIcon(a)
	if err != nil {
		return nil, err
	}
	if err := p.Models.Put(ctx, key, blob); err != nil {
		p.logf("store icon %s: %v", key, err)
	}
	return blob, nil
}

func (p *Pipeline) each(n int, fn func(i int)) {
	limit := p.Concurrency
	if limit <= 0 {
		limit = 8
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}

func (p *Pipeline) storage(rel string) string {
	return strings.TrimRight(p.StorageURL, "/") + "/" + rel
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

func sortedIDs(m map[string]Model) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.Atoi(out[i])
		b, errB := strconv.Atoi(out[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}
