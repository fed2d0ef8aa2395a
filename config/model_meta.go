package config

import (
	"github.com/juju/errors"
	toml "github.com/pelletier/go-toml"
)

// ModelMeta is the nested descriptive metadata a model.Model carries
// beyond its SQL text: description, tags, owner, category, and the
// freshness threshold. It lives in TOML rather than the engine-settings
// INI file because it nests naturally (a map of model name -> metadata
// block) in a way ini.v1's flat section/key model does not.
type ModelMeta struct {
	Description            string   `toml:"description"`
	Tags                    []string `toml:"tags"`
	Owner                   string   `toml:"owner"`
	Category                string   `toml:"category"`
	FreshnessThresholdHours float64  `toml:"freshness_threshold_hours"`
}

// ModelMetaFile is the parsed shape of a `[models.<name>]`-sectioned TOML
// file describing every model's metadata in one place.
type ModelMetaFile struct {
	Models map[string]ModelMeta `toml:"models"`
}

// LoadModelMeta parses a TOML file of `[models.<name>]` blocks.
func LoadModelMeta(path string) (*ModelMetaFile, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "loading model metadata file %q", path)
	}
	var out ModelMetaFile
	if err := tree.Unmarshal(&out); err != nil {
		return nil, errors.Annotatef(err, "unmarshalling model metadata file %q", path)
	}
	if out.Models == nil {
		out.Models = map[string]ModelMeta{}
	}
	return &out, nil
}
