package assets

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeModel
	ResourceTypeShader
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeModel:
		return "model"
	case ResourceTypeShader:
		return "shader"
	default:
		return "none"
	}
}

// Resource is a loaded asset. Data is a *Model for models and []byte of
// SPIR-V for shaders.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}

type Loader interface {
	Load(path string) (*Resource, error)
}
