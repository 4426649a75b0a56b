//go:build mage

package main

import "github.com/magefile/mage/mg"

type Test mg.Namespace

// Runs the unit tests. None of them need a GPU.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs the unit tests with the race detector.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}
