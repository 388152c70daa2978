package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/movement/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScene = `
name: cellar
grid:
  type: square
  size: 100
  distance: 1
regions:
  - id: trap
    shapes:
      - type: rectangle
        x: 200
        y: 0
        width: 200
        height: 100
    behaviors:
      - type: pauseOnEnter
        key: trap
tokens:
  - id: goblin
    x: 0
    y: 0
    width: 1
    height: 1
`

func writeFixtures(t *testing.T) (configDir, scenePath, outputDir string) {
	t.Helper()
	dir := t.TempDir()
	outputDir = filepath.Join(dir, "movements")

	cfg := map[string]any{
		"logsDir": filepath.Join(dir, "logs"),
		"storage": map[string]any{
			"type":   "memory",
			"memory": map[string]any{"outputDir": outputDir, "compressOutput": false},
		},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), data, 0644))

	scenePath = filepath.Join(dir, "cellar.yaml")
	require.NoError(t, os.WriteFile(scenePath, []byte(testScene), 0644))
	return dir, scenePath, outputDir
}

func run(t *testing.T, args ...string) map[string]any {
	t.Helper()
	t.Cleanup(viper.Reset)

	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })

	cmd := BuildCLI()
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result), buf.String())
	return result
}

func TestParseWaypoints(t *testing.T) {
	in, err := parseWaypoints(`[[300, 0], {"x": 600, "y": 0, "checkpoint": true, "action": "fly"}]`)
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, 300, *in[0].X)
	assert.Nil(t, in[0].Action)
	assert.Equal(t, 600, *in[1].X)
	assert.True(t, *in[1].Checkpoint)
	assert.Equal(t, "fly", *in[1].Action)

	_, err = parseWaypoints(`[]`)
	assert.Error(t, err)
	_, err = parseWaypoints(`{"x": 1}`)
	assert.Error(t, err)
	_, err = parseWaypoints(`[[1, "a"]]`)
	assert.Error(t, err)
}

func TestParseWaypoints_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "path.json")
	require.NoError(t, os.WriteFile(path, []byte(`[[100,0],[100,100]]`), 0644))

	in, err := parseWaypoints("@" + path)
	require.NoError(t, err)
	assert.Len(t, in, 2)
}

func TestLoadScene_GridFromConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("grid.distance", 2)

	path := filepath.Join(t.TempDir(), "bare.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tokens:\n  - id: a\n    width: 1\n    height: 1\n"), 0644))

	sc, tokens, err := loadScene(path)
	require.NoError(t, err)
	assert.Equal(t, "bare.yaml", sc.Name())
	assert.Equal(t, 2.0, sc.Grid().Config().Distance)
	require.Len(t, tokens, 1)
}

func TestMeasureCommand(t *testing.T) {
	configDir, scenePath, _ := writeFixtures(t)

	result := run(t, "measure", "-c", configDir, "-s", scenePath, "-t", "goblin", "--path", "[[0,0],[300,0],[300,300]]")
	assert.Equal(t, 6.0, result["distance"])
	assert.Equal(t, 6.0, result["spaces"])
	assert.Equal(t, false, result["constrained"])
}

func TestMoveCommand_ResumesAndExports(t *testing.T) {
	configDir, scenePath, outputDir := writeFixtures(t)

	result := run(t, "move", "-c", configDir, "-s", scenePath, "-t", "goblin",
		"--waypoints", `[{"x":300,"y":0,"checkpoint":true},[600,0]]`,
		"--resume", "trap")

	assert.Equal(t, true, result["moved"])
	position := result["position"].(map[string]any)
	assert.Equal(t, 600.0, position["x"])
	movement := result["movement"].(map[string]any)
	assert.Equal(t, "completed", movement["status"])

	exports, err := filepath.Glob(filepath.Join(outputDir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, exports, 1)
}

func TestMoveCommand_PausedWithoutResume(t *testing.T) {
	configDir, scenePath, _ := writeFixtures(t)

	result := run(t, "move", "-c", configDir, "-s", scenePath, "-t", "goblin",
		"--waypoints", `[{"x":300,"y":0,"checkpoint":true},[600,0]]`)

	movement := result["movement"].(map[string]any)
	assert.Equal(t, "paused", movement["status"])
	assert.Equal(t, map[string]any{"trap": 1.0}, movement["outstanding"])
}
