package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidatePackageInfo accepts well-formed metadata and rejects wrong types and bad JSON.
func TestValidatePackageInfo(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePackageInfo([]byte(`{"packageHash":"abc","packageSize":10,"isMandatory":false}`)))
	require.NoError(t, ValidatePackageInfo([]byte(`{}`)))

	require.Error(t, ValidatePackageInfo([]byte(`{"packageSize":"ten"}`)))
	require.Error(t, ValidatePackageInfo([]byte(`["not","an","object"]`)))
	require.Error(t, ValidatePackageInfo([]byte(`{"packageHash":`)))
}

// TestValidateDiffManifest requires a list of non-empty paths.
func TestValidateDiffManifest(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateDiffManifest([]byte(`{"deletedFiles":["www/a.js"]}`)))
	require.NoError(t, ValidateDiffManifest([]byte(`{"deletedFiles":[]}`)))

	require.Error(t, ValidateDiffManifest([]byte(`{}`)))
	require.Error(t, ValidateDiffManifest([]byte(`{"deletedFiles":[""]}`)))
	require.Error(t, ValidateDiffManifest([]byte(`{"deletedFiles":"www/a.js"}`)))
}
