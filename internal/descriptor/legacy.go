package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/tidwall/jsonc"
)

// LegacyFileName is the JSON descriptor written by the first generation of the tool.
const LegacyFileName = ".stack_config.json"

// legacyDescriptor mirrors the old JSON layout. use_db predates use_pg and means the same thing.
type legacyDescriptor struct {
	Project  string   `json:"project"`
	Domain   string   `json:"domain"`
	Email    string   `json:"email"`
	Staging  bool     `json:"staging"`
	UsePG    *bool    `json:"use_pg"`
	UseDB    bool     `json:"use_db"`
	UseMongo bool     `json:"use_mongo"`
	UseRedis bool     `json:"use_redis"`
	Backs    []string `json:"backs"`
	Fronts   []struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	} `json:"fronts"`
}

// LoadLegacy imports a legacy JSON descriptor. Comments and trailing commas
// left behind by hand edits are tolerated.
func LoadLegacy(fs billy.Filesystem, name string) (Descriptor, error) {
	data, err := util.ReadFile(fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Descriptor{}, fmt.Errorf("reading %s: %w", name, err)
	}

	var legacy legacyDescriptor
	if err := json.Unmarshal(jsonc.ToJSON(data), &legacy); err != nil {
		return Descriptor{}, fmt.Errorf("%w: parsing %s: %v", ErrCorruptDescriptor, name, err)
	}

	d := Descriptor{
		Version: CurrentVersion,
		Project: legacy.Project,
		Domain:  legacy.Domain,
		Email:   legacy.Email,
		Staging: legacy.Staging,
		DataStores: DataStores{
			Postgres: legacy.UseDB,
			Mongo:    legacy.UseMongo,
			Redis:    legacy.UseRedis,
		},
		Backends: append([]string(nil), legacy.Backs...),
	}
	if legacy.UsePG != nil {
		d.DataStores.Postgres = *legacy.UsePG
	}
	for _, f := range legacy.Fronts {
		kind := Kind(f.Kind)
		if !kind.Valid() {
			kind = KindMeta
		}
		d.Frontends = append(d.Frontends, Frontend{Name: f.Name, Kind: kind})
	}
	return d.EnsureSocket(), nil
}
