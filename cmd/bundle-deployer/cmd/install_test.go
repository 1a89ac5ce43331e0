package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/bundle-deployer/internal/config"
	"github.com/oshokin/bundle-deployer/internal/host"
)

func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()

	out, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(out)

	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)

		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
}

// TestInstallCommand_MandatoryPackageRecordsHostState runs the install command for a
// mandatory package and checks the host state as soon as the command returns.
//
//nolint:paralleltest // Drives the package-level root command and its flag variables.
func TestInstallCommand_MandatoryPackageRecordsHostState(t *testing.T) {
	dir := t.TempDir()

	cfg := &config.Config{
		DataRoot:    dir,
		MetricsFile: filepath.Join(dir, "deployer.prom"),
	}

	cfgPath := filepath.Join(dir, "bundle-deployer.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	archivePath := filepath.Join(dir, "update.zip")
	writeArchive(t, archivePath, map[string]string{"www/index.html": "<html>v1</html>"})

	packagePath := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(packagePath, []byte(`{
		"appVersion": "1.0.0",
		"deploymentKey": "production",
		"label": "v1",
		"packageHash": "hash-1",
		"packageSize": 1,
		"isMandatory": true
	}`), 0o600))

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"install",
		"--config", cfgPath,
		"--package", packagePath,
		"--archive", archivePath,
	})

	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	require.Contains(t, out.String(), "label: v1")

	state, err := host.New(cfg.HostStatePath()).State(context.Background())
	require.NoError(t, err)
	require.True(t, state.PendingUpdate)
	require.NotNil(t, state.PendingPackage)
	require.Equal(t, "IMMEDIATE", state.PendingPackage.InstallMode)
	require.Equal(t, filepath.Join(dir, "codepush", "deploy", "versions", "hash-1"), state.PendingPackage.StartLocation)
	require.Contains(t, state.FirstRunHashes, "hash-1")

	metrics, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	require.Contains(t, string(metrics), `bundle_deployer_installs_total{kind="full",outcome="success"} 1`)
}
