package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_CleansUpAfterFailedCommand(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "bikepaths.log")
	t.Setenv("QC_BIKE_PATH_LOG_FILE", logPath)

	rootCmd.SetArgs([]string{"validate", filepath.Join(dir, "missing.json")})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.json")

	assert.FileExists(t, logPath, "logger was set up before the command failed")
	assert.Nil(t, logCleanup, "log file is closed even though the command failed")
	assert.Nil(t, dbClient)
}
