package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gridcraft.app/internal/protocol"
)

var ErrManifest = errors.New("assets: manifest unavailable")

// Model parents as they appear in the manifest.
const (
	ParentCubeAll    = "block/cube_all"
	ParentCube       = "block/cube"
	ParentCubeColumn = "block/cube_column"
	ParentHandheld   = "item/handheld"
)

// Model maps named faces (all, up, side, layer0, ...) to texture URLs.
type Model struct {
	Parent   string            `json:"parent"`
	Textures map[string]string `json:"textures"`
}

type BlockParams struct {
	Name     string `json:"name"`
	Hardness int    `json:"hardness,omitempty"`
}

type Item struct {
	Name       string `json:"name"`
	MaxStack   int    `json:"max_stack,omitempty"`
	Durability int    `json:"durability,omitempty"`
}

type Manifest struct {
	Textures struct {
		BlockTextures map[string]Model `json:"blockTextures"`
		ItemTextures  map[string]Model `json:"itemTextures"`
	} `json:"textures"`
	Assets struct {
		Blocks   map[string]BlockParams     `json:"blocks"`
		Items    map[string]Item            `json:"items"`
		Recipes  map[string]json.RawMessage `json:"recipes"`
		Smelting map[string]json.RawMessage `json:"smelting"`
	} `json:"assets"`
}

type manifestResponse struct {
	OK       bool            `json:"ok"`
	Response json.RawMessage `json:"response"`
}

type manifestError struct {
	Exception   string `json:"exception"`
	Description string `json:"description"`
}

// DecodeManifest validates and decodes a raw /api/assets response body.
func DecodeManifest(raw []byte) (Manifest, error) {
	var m Manifest
	if err := protocol.ValidateJSON(protocol.SchemaManifest, raw); err != nil {
		return m, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	var resp manifestResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return m, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if !resp.OK {
		var e manifestError
		_ = json.Unmarshal(resp.Response, &e)
		return m, fmt.Errorf("%w: %s: %s", ErrManifest, e.Exception, e.Description)
	}
	if err := json.Unmarshal(resp.Response, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	return m, nil
}

// FetchManifest downloads <backend>/api/assets.
func FetchManifest(ctx context.Context, client *http.Client, backend string) (Manifest, error) {
	if client == nil {
		client = http.DefaultClient
	}
	u := strings.TrimRight(backend, "/") + "/api/assets"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Manifest{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Manifest{}, fmt.Errorf("%w: %s", ErrManifest, resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	return DecodeManifest(raw)
}

// NormalizePath turns a texture URL into its cache key: the URL path of an
// absolute URL, or the reference itself, minus a trailing ".png".
func NormalizePath(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.Path
	}
	return strings.TrimSuffix(p, ".png")
}

// ExpectedKeys lists the distinct normalized texture paths a session loads
// for the manifest, sorted: the required faces of every model jobs selects.
func ExpectedKeys(m Manifest) []string {
	seen := map[string]bool{}
	for _, j := range jobs(m, nil) {
		for _, face := range shapeFaces[j.model.Parent].faces {
			seen[NormalizePath(j.model.Textures[face])] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type job struct {
	name  string
	model Model
}

// jobs lists block models then item models, ordered by id. A model is kept
// when it has a named entry, a supported parent and every face that parent
// requires. An item whose name a block already took is skipped.
func jobs(m Manifest, logf func(format string, args ...any)) []job {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	var out []job
	taken := map[string]bool{}
	add := func(kind, id, name string, model Model) {
		sf, ok := shapeFaces[model.Parent]
		if !ok {
			logf("%s texture %s: unsupported parent %q", kind, id, model.Parent)
			return
		}
		for _, face := range sf.faces {
			if _, ok := model.Textures[face]; !ok {
				logf("%s texture %s: %s model has no %q texture", kind, id, model.Parent, face)
				return
			}
		}
		if taken[name] {
			return
		}
		taken[name] = true
		out = append(out, job{name: name, model: model})
	}
	for _, id := range sortedIDs(m.Textures.BlockTextures) {
		b, ok := m.Assets.Blocks[id]
		if !ok || b.Name == "" {
			logf("block texture %s has no block entry", id)
			continue
		}
		add("block", id, b.Name, m.Textures.BlockTextures[id])
	}
	for _, id := range sortedIDs(m.Textures.ItemTextures) {
		it, ok := m.Assets.Items[id]
		if !ok || it.Name == "" {
			logf("item texture %s has no item entry", id)
			continue
		}
		add("item", id, it.Name, m.Textures.ItemTextures[id])
	}
	return out
}

// BlockName resolves a block code to its manifest name.
func (m Manifest) BlockName(id int) (string, bool) {
	b, ok := m.Assets.Blocks[strconv.Itoa(id)]
	return b.Name, ok && b.Name != ""
}

func (m Manifest) ItemName(id int) (string, bool) {
	it, ok := m.Assets.Items[strconv.Itoa(id)]
	return it.Name, ok && it.Name != ""
}
