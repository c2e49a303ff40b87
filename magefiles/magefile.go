//go:build mage

// Package main provides build targets for the cortex project using Mage.
//
// Usage:
//
//	mage build          Compile the cortex binary to bin/
//	mage install        Install cortex to GOPATH/bin
//	mage clean          Remove build artifacts
//	mage lint           Run golangci-lint
//	mage test:all       Run all tests
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Write a coverage profile to bin/cover.out
//	mage test:bench     Run the store read benchmarks
//	mage test:package <dir>  Run the tests of one package
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "cortex"
	binaryDir  = "bin"
	cmdDir     = "./cmd/cortex"
	modulePath = "github.com/mesh-intelligence/cortex"
)

// Build compiles the cortex binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Test groups test targets.
type Test mg.Namespace

// All runs every test in the module.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs every test with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile to bin/cover.out and prints the summary.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "cover.out")
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", profile)
}

// Bench runs the store read benchmarks.
func (Test) Bench() error {
	return sh.RunV(binGo, "test", "-run", "^$", "-bench", "GetEntit", "-benchmem", "./internal/sqlite/")
}

// Package runs the tests of one package directory, e.g. internal/sqlite.
func (Test) Package(dir string) error {
	dir = strings.TrimPrefix(strings.TrimSuffix(dir, "/"), "./")
	pkgs, err := sh.Output(binGo, "list", "./...")
	if err != nil {
		return err
	}
	want := modulePath + "/" + dir
	for pkg := range strings.SplitSeq(pkgs, "\n") {
		if pkg == want {
			return sh.RunV(binGo, "test", "-v", pkg)
		}
	}
	return fmt.Errorf("no package %s in %s", dir, modulePath)
}
