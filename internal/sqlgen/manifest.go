package sqlgen

import (
	"encoding/json"
	"os"
	"path/filepath"

	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

// ManifestName is the file WriteManifest writes next to the SQL files.
const ManifestName = "plan.json"

// WriteManifest writes the plan as JSON into dir so apply and replay can
// execute exactly what was rendered.
func (p *Plan) WriteManifest(dir string) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domainerrors.Wrapf(err, domainerrors.CodeInternal, "create output dir %s", dir)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "encode plan")
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", domainerrors.Wrapf(err, domainerrors.CodeInternal, "write %s", path)
	}
	return path, nil
}

// ReadManifest loads and validates a plan written by WriteManifest. A
// directory argument is resolved to the manifest inside it.
func ReadManifest(path string) (*Plan, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ManifestName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.NotFoundf("plan manifest %s", path)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "read %s", path)
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "decode %s", path)
	}
	if _, err := ParseDialect(string(p.Dialect)); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
