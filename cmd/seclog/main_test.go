package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindConfigFilePrefersArgument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	if err := os.WriteFile(path, []byte("seclog: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, path, findConfigFile(path))
}

func TestFindConfigFileFallsBackToWorkingDir(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.WriteFile(defaultConfigName, []byte("seclog: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, defaultConfigName, findConfigFile(filepath.Join(dir, "missing.yml")))
}
