package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConfigPath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "home.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0600))

	defaults := ConfigPaths{
		WorkingDirLoc: filepath.Join(dir, "missing.json"),
		HomeLoc:       existing,
	}

	t.Run("args", func(t *testing.T) {
		path, err := FindConfigPath([]string{"a.json"}, 0, "", defaults)
		require.NoError(t, err)
		assert.Equal(t, "a.json", path)
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("SGIP_TEST_CONFIG", "env.json")
		path, err := FindConfigPath(nil, 0, "SGIP_TEST_CONFIG", defaults)
		require.NoError(t, err)
		assert.Equal(t, "env.json", path)
	})

	t.Run("defaults", func(t *testing.T) {
		path, err := FindConfigPath(nil, -1, "", defaults)
		require.NoError(t, err)
		assert.Equal(t, existing, path)
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := FindConfigPath(nil, -1, "", ConfigPaths{LocalLoc: filepath.Join(dir, "none.json")})
		assert.True(t, errors.Is(err, ErrConfigNotFound))
	})
}

func TestWriteConfig(t *testing.T) {
	dir := t.TempDir()
	conf := map[string]int{"window_size": 4}

	jsonPath := filepath.Join(dir, "sub", "c.json")
	require.NoError(t, WriteConfig(conf, jsonPath, false))
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "{\n\t\"window_size\": 4\n}", string(raw))

	assert.Error(t, WriteConfig(conf, jsonPath, false))
	assert.NoError(t, WriteConfig(conf, jsonPath, true))

	yamlPath := filepath.Join(dir, "c.yaml")
	require.NoError(t, WriteConfig(conf, yamlPath, false))
	raw, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "window_size: 4\n", string(raw))
}

func TestConfigLocationType_Set(t *testing.T) {
	var loc ConfigLocationType
	require.NoError(t, loc.Set("HOME"))
	assert.Equal(t, HomeLoc, loc)
	assert.Error(t, loc.Set("ELSEWHERE"))
}
