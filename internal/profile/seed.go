package profile

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadSeed reads a profile from a TOML file. It is used in place of the
// built-in default on a fresh install. A missing file returns an error
// satisfying os.IsNotExist.
func LoadSeed(path string) (Profile, error) {
	if _, err := os.Stat(path); err != nil {
		return Profile{}, err
	}

	var p Profile
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Profile{}, fmt.Errorf("parsing profile seed %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("profile seed %s: unknown keys %v", path, undecoded)
	}
	if p.Name == "" {
		return Profile{}, fmt.Errorf("profile seed %s: name is required", path)
	}
	return p, nil
}
