package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/shinyvision/phpinfer/internal/utils"
)

// Psr4Map maps a namespace prefix to its source directories.
type Psr4Map map[string][]string

// Dirs returns every mapped directory once, sorted.
func (m Psr4Map) Dirs() []string {
	var dirs []string
	for _, ds := range m {
		for _, d := range ds {
			dirs = utils.AppendUnique(dirs, d)
		}
	}
	slices.Sort(dirs)
	return dirs
}

type composerAutoload struct {
	Psr4 map[string]json.RawMessage `json:"psr-4"`
}

type composerFile struct {
	Autoload    composerAutoload `json:"autoload"`
	AutoloadDev composerAutoload `json:"autoload-dev"`
}

// GetPsr4Map reads the psr-4 sections of a composer.json. A prefix maps to
// either one directory or a list of them.
func GetPsr4Map(composerJSON string) (Psr4Map, error) {
	data, err := os.ReadFile(composerJSON)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", composerJSON, err)
	}

	var composer composerFile
	if err := json.Unmarshal(data, &composer); err != nil {
		return nil, fmt.Errorf("could not unmarshal json: %w", err)
	}

	psr4Map := make(Psr4Map)
	for _, section := range []composerAutoload{composer.Autoload, composer.AutoloadDev} {
		for prefix, raw := range section.Psr4 {
			var one string
			if err := json.Unmarshal(raw, &one); err == nil {
				psr4Map[prefix] = append(psr4Map[prefix], one)
				continue
			}
			var many []string
			if err := json.Unmarshal(raw, &many); err != nil {
				return nil, fmt.Errorf("bad psr-4 entry for %q: %w", prefix, err)
			}
			psr4Map[prefix] = append(psr4Map[prefix], many...)
		}
	}
	return psr4Map, nil
}
