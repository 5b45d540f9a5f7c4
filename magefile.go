//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified.
var Default = Build

// Build compiles the pyext command.
func Build() error {
	mg.Deps(Vet)
	return sh.RunV("go", "build", "-o", "bin/pyext", "./cmd/pyext")
}

// Vet runs go vet over the module.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the unit tests. The toolchain test is skipped in short mode.
func Test() error {
	return sh.RunV("go", "test", "-short", "./...")
}

// Integration builds a real module with cmake and pybind11.
func Integration() error {
	return sh.RunV("go", "test", "-run", "TestBuildRealModule", "-v", ".")
}

// Clean removes build outputs.
func Clean() error {
	return sh.Rm("bin")
}
