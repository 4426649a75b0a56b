//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var shaderStages = []string{"mesh.vert", "mesh.frag"}

// Compiles every GLSL stage under shaders/ to SPIR-V with glslc.
func (Build) Shaders() error {
	for _, stage := range shaderStages {
		src := filepath.Join("shaders", stage)
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Compiles the shaders and builds the binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "lumen"), "."), withStream())
	return err
}
