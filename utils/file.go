package utils

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// LoadJSONFile decodes the json file at path into v. Fields missing from the file keep whatever value v
// already holds, so callers pass a struct filled with defaults.
func LoadJSONFile(path string, v interface{}) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return errors.Wrapf(err, "cannot open %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrapf(err, "cannot decode %q", path)
	}
	return nil
}
