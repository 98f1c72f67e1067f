package render

import (
	"embed"
	"errors"
	"io/fs"
)

//go:embed shaders/*.vert shaders/*.frag
var shaderFS embed.FS

// ErrUnknownShader is returned by Shader for names not in ShaderNames.
var ErrUnknownShader = errors.New("render: unknown shader")

// ShaderNames lists the embedded shader sources.
var ShaderNames = []string{"terrain.vert", "terrain.frag"}

// Shader returns the GLSL source with the given file name.
func Shader(name string) ([]byte, error) {
	b, err := shaderFS.ReadFile("shaders/" + name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return nil, ErrUnknownShader
	}
	return b, err
}
