// Package assets loads the geometry and shader bytecode the renderer
// consumes. Files are read once at startup.
package assets

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"golang.org/x/sync/errgroup"
)

type AssetInfo struct {
	Path       string
	Type       ResourceType
	LastLoaded time.Time
}

type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[ResourceType]Loader

	mutex sync.RWMutex
}

func NewAssetManager() *AssetManager {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[ResourceType]Loader),
	}
	am.registerLoader(ResourceTypeModel, &ModelLoader{})
	am.registerLoader(ResourceTypeShader, &ShaderLoader{})
	return am
}

func (am *AssetManager) registerLoader(assetType ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset picks the loader from the file extension.
func (am *AssetManager) LoadAsset(path string) (*Resource, error) {
	assetType := determineAssetType(path)
	loader, ok := am.loaders[assetType]
	if !ok {
		return nil, fmt.Errorf("no loader registered for %q", path)
	}

	res, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{Path: path, Type: assetType, LastLoaded: time.Now()}
	am.mutex.Unlock()
	core.LogDebug("loaded %s %q (%d bytes)", assetType, path, res.DataSize)
	return res, nil
}

// LoadAll loads every path concurrently. The first failure cancels the
// rest. Results keep the order of paths.
func (am *AssetManager) LoadAll(ctx context.Context, paths ...string) ([]*Resource, error) {
	out := make([]*Resource, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := am.LoadAsset(p)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (am *AssetManager) Info(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[path]
	return info, ok
}

// Bundle is everything the renderer needs before the first frame.
type Bundle struct {
	Model   *Model
	Shaders renderer.Shaders
}

// LoadBundle reads both shader stages and, unless modelPath is empty, the
// model. Without a model the built-in cube is used.
func (am *AssetManager) LoadBundle(ctx context.Context, modelPath, vertexPath, fragmentPath string) (*Bundle, error) {
	for _, p := range []string{vertexPath, fragmentPath} {
		if determineAssetType(p) != ResourceTypeShader {
			return nil, fmt.Errorf("%q is not a SPIR-V file", p)
		}
	}
	paths := []string{vertexPath, fragmentPath}
	if modelPath != "" {
		if determineAssetType(modelPath) != ResourceTypeModel {
			return nil, fmt.Errorf("%q is not a glTF file", modelPath)
		}
		paths = append(paths, modelPath)
	}
	res, err := am.LoadAll(ctx, paths...)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		Shaders: renderer.Shaders{
			Vertex:   res[0].Data.([]byte),
			Fragment: res[1].Data.([]byte),
		},
		Model: Cube(),
	}
	if modelPath != "" {
		b.Model = res[2].Data.(*Model)
	}
	return b, nil
}

func determineAssetType(path string) ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return ResourceTypeModel
	case ".spv":
		return ResourceTypeShader
	default:
		return ResourceTypeNone
	}
}
