// Package schema validates the deployer's JSON documents against embedded schemas.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	//go:embed package_info.schema.json
	packageInfoSchema []byte
	//go:embed diff_manifest.schema.json
	diffManifestSchema []byte

	compilePackageInfo  = sync.OnceValues(func() (*jsonschema.Schema, error) { return compile("package-info", packageInfoSchema) })
	compileDiffManifest = sync.OnceValues(func() (*jsonschema.Schema, error) { return compile("diff-manifest", diffManifestSchema) })
)

// ValidatePackageInfo checks a raw currentPackage.json/oldPackage.json document.
func ValidatePackageInfo(data []byte) error {
	return validate(compilePackageInfo, data)
}

// ValidateDiffManifest checks a raw hotcodepush.json document.
func ValidateDiffManifest(data []byte) error {
	return validate(compileDiffManifest, data)
}

func validate(compiled func() (*jsonschema.Schema, error), data []byte) error {
	schema, err := compiled()
	if err != nil {
		return err
	}

	var payload any
	if err = json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	if err = schema.Validate(payload); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

func compile(id string, schema []byte) (*jsonschema.Schema, error) {
	resourceID := "inmemory://" + id
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(resourceID, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := compiler.Compile(resourceID)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return compiled, nil
}
