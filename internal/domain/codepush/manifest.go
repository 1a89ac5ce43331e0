package codepush

// DiffManifest lists files removed by a diff update, relative to the package root.
type DiffManifest struct {
	DeletedFiles []string `json:"deletedFiles"`
}

// DeploymentResult is the outcome of assembling a new package directory.
type DeploymentResult struct {
	// DeployDir is the absolute path of the assembled versioned directory.
	DeployDir string
	// IsDiffUpdate is true when the directory was built from the current package plus an overlay.
	IsDiffUpdate bool
}

// Kind returns a short label for logs and metrics.
func (r DeploymentResult) Kind() string {
	if r.IsDiffUpdate {
		return "diff"
	}

	return "full"
}
