package release

import (
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/BaSui01/releaseflow/types"
)

// defaultVersionField is the JSON path holding the version in a manifest.
const defaultVersionField = "version"

// VersionFile reads and writes the project version. A path ending in .json is
// treated as a manifest whose Field holds the version; anything else is a
// plain text file containing only the version.
type VersionFile struct {
	Path  string
	Field string
}

// NewVersionFile returns a VersionFile for path. An empty field selects "version".
func NewVersionFile(path, field string) VersionFile {
	if field == "" {
		field = defaultVersionField
	}
	return VersionFile{Path: path, Field: field}
}

func (f VersionFile) isManifest() bool {
	return strings.EqualFold(filepath.Ext(f.Path), ".json")
}

// Read returns the version currently recorded in the file.
func (f VersionFile) Read(fs FileSystem) (string, error) {
	if !fs.Exists(f.Path) {
		return "", types.NotFound("version file %s does not exist", f.Path)
	}
	data, err := fs.Read(f.Path)
	if err != nil {
		return "", types.Failed("read %s", f.Path).WithCause(err)
	}

	raw := strings.TrimSpace(string(data))
	if f.isManifest() {
		if !gjson.ValidBytes(data) {
			return "", types.Invalid("%s is not valid JSON", f.Path)
		}
		res := gjson.GetBytes(data, f.Field)
		if !res.Exists() {
			return "", types.NotFound("%s has no %q field", f.Path, f.Field)
		}
		raw = res.String()
	}

	v, err := ParseVersion(raw)
	if err != nil {
		return "", types.Invalid("%s holds an invalid version", f.Path).WithCause(err)
	}
	return v, nil
}

// Write records version, preserving every other manifest field and the
// original key order.
func (f VersionFile) Write(fs FileSystem, version string) error {
	if !f.isManifest() {
		if err := fs.Write(f.Path, []byte(version+"\n")); err != nil {
			return types.Failed("write %s", f.Path).WithCause(err)
		}
		return nil
	}

	data, err := fs.Read(f.Path)
	if err != nil {
		return types.Failed("read %s", f.Path).WithCause(err)
	}
	updated, err := sjson.SetBytes(data, f.Field, version)
	if err != nil {
		return types.Invalid("set %s in %s", f.Field, f.Path).WithCause(err)
	}
	if err := fs.Write(f.Path, updated); err != nil {
		return types.Failed("write %s", f.Path).WithCause(err)
	}
	return nil
}
