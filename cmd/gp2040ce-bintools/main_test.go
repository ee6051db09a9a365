package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/gp2040ce/bintools/internal/testschema"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConcatenateSummarizeVisualize(t *testing.T) {
	dir := t.TempDir()
	set, err := proto.Marshal(testschema.DescriptorSet())
	require.NoError(t, err)
	schemaPath := filepath.Join(dir, "config.pb")
	require.NoError(t, os.WriteFile(schemaPath, set, 0o644))

	firmware := filepath.Join(dir, "firmware.bin")
	require.NoError(t, os.WriteFile(firmware, []byte("GP2040-CE v0.7.5 build"), 0o644))
	user := filepath.Join(dir, "user.json")
	require.NoError(t, os.WriteFile(user, []byte(`{"boardVersion": "v0.7.5"}`), 0o644))
	image := filepath.Join(dir, "combined.uf2")

	_, err = execute(t, "concatenate", firmware,
		"--descriptor-set", schemaPath,
		"--json-user-config-filename", user,
		"--new-filename", image)
	require.NoError(t, err)
	assert.FileExists(t, image)

	out, err := execute(t, "summarize-gp2040ce", image, "--descriptor-set", schemaPath, "--digest", "sha256")
	require.NoError(t, err)
	assert.Contains(t, out, "firmware")
	assert.Contains(t, out, "user-config")
	assert.Contains(t, out, "valid")
	assert.Contains(t, out, "sha256:")

	out, err = execute(t, "visualize-config", "--descriptor-set", schemaPath, "--filename", image, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"boardVersion"`)
	assert.Contains(t, out, "v0.7.5")
}
