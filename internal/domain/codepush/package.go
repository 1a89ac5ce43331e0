package codepush

// Package describes a single update bundle and its status on the device.
type Package struct {
	// AppVersion is the application binary version this update targets.
	AppVersion string `json:"appVersion" yaml:"app_version"`
	// DeploymentKey identifies the update channel.
	DeploymentKey string `json:"deploymentKey" yaml:"deployment_key"`
	// Description holds optional release notes.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// IsMandatory selects the mandatory install mode when set.
	IsMandatory bool `json:"isMandatory" yaml:"is_mandatory"`
	// Label is the update identifier, e.g. "v12".
	Label string `json:"label" yaml:"label"`
	// PackageHash is the content digest of the bundle and names its deploy directory.
	PackageHash string `json:"packageHash" yaml:"package_hash"`
	// PackageSize is the artifact size in bytes.
	PackageSize int64 `json:"packageSize" yaml:"package_size"`
	// LocalPath points to the staged archive before install and to the deploy directory after.
	LocalPath string `json:"localPath,omitempty" yaml:"local_path,omitempty"`
	// IsFirstRun is computed at read time from host state.
	IsFirstRun bool `json:"isFirstRun" yaml:"is_first_run"`
	// FailedInstall is computed at read time from host state.
	FailedInstall bool `json:"failedInstall" yaml:"failed_install"`
}

// EffectiveInstallMode picks the mode used for this package under opts.
func (p *Package) EffectiveInstallMode(opts InstallOptions) InstallMode {
	if p.IsMandatory {
		return opts.MandatoryInstallMode
	}

	return opts.InstallMode
}

// PackageInfoMetadata is the on-disk record stored in the current and old slots.
// Native code reads the same files, so field names must stay stable.
type PackageInfoMetadata struct {
	AppVersion      string `json:"appVersion,omitempty"`
	DeploymentKey   string `json:"deploymentKey,omitempty"`
	Description     string `json:"description,omitempty"`
	IsMandatory     bool   `json:"isMandatory"`
	Label           string `json:"label,omitempty"`
	PackageHash     string `json:"packageHash,omitempty"`
	PackageSize     int64  `json:"packageSize"`
	LocalPath       string `json:"localPath,omitempty"`
	NativeBuildTime string `json:"nativeBuildTime,omitempty"`
	// Install is reserved by the native side and never populated here.
	Install any `json:"install,omitempty"`
}

// NewMetadata builds the record persisted for p once it has been deployed.
func NewMetadata(p *Package, appVersion, buildTime string) *PackageInfoMetadata {
	return &PackageInfoMetadata{
		AppVersion:      appVersion,
		DeploymentKey:   p.DeploymentKey,
		Description:     p.Description,
		IsMandatory:     p.IsMandatory,
		Label:           p.Label,
		PackageHash:     p.PackageHash,
		PackageSize:     p.PackageSize,
		LocalPath:       p.LocalPath,
		NativeBuildTime: buildTime,
	}
}

// ToPackage converts persisted metadata into a fresh Package.
// The transient flags are supplied by the caller from host state.
func (m *PackageInfoMetadata) ToPackage(failedInstall, isFirstRun bool) *Package {
	return &Package{
		AppVersion:    m.AppVersion,
		DeploymentKey: m.DeploymentKey,
		Description:   m.Description,
		IsMandatory:   m.IsMandatory,
		Label:         m.Label,
		PackageHash:   m.PackageHash,
		PackageSize:   m.PackageSize,
		LocalPath:     m.LocalPath,
		IsFirstRun:    isFirstRun,
		FailedInstall: failedInstall,
	}
}
