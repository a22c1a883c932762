package commands

import (
	"errors"
	"fmt"
	"os"

	"hnsaved/lib/configutil"

	"github.com/adrg/xdg"
)

// Credentials is the format of the auth file.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

const authFileName = "hnss/auth.json"

// defaultAuthFile is $XDG_CONFIG_HOME/hnss/auth.json (or the first match in
// $XDG_CONFIG_DIRS), empty when there is none.
func defaultAuthFile() string {
	path, err := xdg.SearchConfigFile(authFileName)
	if err != nil {
		return ""
	}
	return path
}

// resolveCredentials fills in whatever the flags left empty from the auth file. An explicit
// authFile has to exist, the default one is optional.
func resolveCredentials(flags Credentials, authFile, fallbackAuthFile string) (Credentials, error) {
	path := authFile
	if path == "" {
		path = fallbackAuthFile
	}

	if path != "" {
		fromFile, err := configutil.ReadConfig[Credentials](path)
		switch {
		case err == nil:
			if flags.Username == "" {
				flags.Username = fromFile.Username
			}
			if flags.Password == "" {
				flags.Password = fromFile.Password
			}
		case errors.Is(err, os.ErrNotExist) && authFile == "":
		default:
			return Credentials{}, fmt.Errorf("read auth file %s: %w", path, err)
		}
	}

	if flags.Username == "" {
		return Credentials{}, fmt.Errorf("no username given")
	}
	if flags.Password == "" {
		return Credentials{}, fmt.Errorf("no password given")
	}
	return flags, nil
}
