package phptool

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-version"
)

// Package is an installed Composer package.
type Package struct {
	Name        string
	Version     string
	InstallPath string
}

// IsDev reports whether the package was installed from a branch.
func (p Package) IsDev() bool {
	return strings.HasPrefix(p.Version, "dev-") || strings.HasSuffix(p.Version, "-dev")
}

// Satisfies reports whether the package version is at least minVersion.
// Branch installs always satisfy; unparseable versions never do.
func (p Package) Satisfies(minVersion string) bool {
	if p.IsDev() {
		return true
	}
	have, err := version.NewVersion(p.Version)
	if err != nil {
		return false
	}
	want, err := version.NewVersion(minVersion)
	if err != nil {
		return false
	}
	return have.Core().GreaterThanOrEqual(want)
}

type installedPackage struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	VersionNormalized string `json:"version_normalized"`
	InstallPath       string `json:"install-path"`
}

// PackageFinder looks up packages in Composer's installed.json.
type PackageFinder struct {
	vendorDir string

	once     sync.Once
	packages map[string]Package
	err      error
}

// NewPackageFinder creates a finder for the given vendor directory.
func NewPackageFinder(vendorDir string) *PackageFinder {
	return &PackageFinder{vendorDir: vendorDir}
}

// InstalledJSON returns the path of Composer's installed packages file.
func (f *PackageFinder) InstalledJSON() string {
	return filepath.Join(f.vendorDir, "composer", "installed.json")
}

// Find returns the installed package called name. A missing installed.json
// means no packages are installed.
func (f *PackageFinder) Find(name string) (Package, bool, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return Package{}, false, f.err
	}
	p, ok := f.packages[strings.ToLower(name)]
	return p, ok, nil
}

// All returns every installed package.
func (f *PackageFinder) All() ([]Package, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Package, 0, len(f.packages))
	for _, p := range f.packages {
		out = append(out, p)
	}
	return out, nil
}

func (f *PackageFinder) load() {
	f.packages = map[string]Package{}

	data, err := os.ReadFile(f.InstalledJSON())
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		f.err = fmt.Errorf("failed to read installed packages: %w", err)
		return
	}

	list, err := decodeInstalled(data)
	if err != nil {
		f.err = fmt.Errorf("failed to parse %s: %w", f.InstalledJSON(), err)
		return
	}

	composerDir := filepath.Join(f.vendorDir, "composer")
	for _, ip := range list {
		if ip.Name == "" {
			continue
		}
		installPath := filepath.Join(f.vendorDir, filepath.FromSlash(ip.Name))
		if ip.InstallPath != "" {
			installPath = filepath.Clean(filepath.Join(composerDir, filepath.FromSlash(ip.InstallPath)))
		}
		v := ip.VersionNormalized
		if v == "" || strings.HasPrefix(ip.Version, "dev-") {
			v = ip.Version
		}
		f.packages[strings.ToLower(ip.Name)] = Package{
			Name:        ip.Name,
			Version:     strings.TrimPrefix(v, "v"),
			InstallPath: installPath,
		}
	}
}

// decodeInstalled accepts the Composer 2 object format and the Composer 1
// plain list.
func decodeInstalled(data []byte) ([]installedPackage, error) {
	var v2 struct {
		Packages []installedPackage `json:"packages"`
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &v2); err != nil {
			return nil, err
		}
		return v2.Packages, nil
	}
	var v1 []installedPackage
	if err := json.Unmarshal(data, &v1); err != nil {
		return nil, err
	}
	return v1, nil
}
