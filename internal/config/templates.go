package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "hub", "":
		return hubTemplate, nil
	case "minimal":
		return minimalTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const hubTemplate = `name = "root"

[log]
level = "info"
format = "console"
timestamp = true
no_color = false

[admin]
enabled = true
addr = ":9400"
cors_origins = ["http://localhost:3000"]

[components.admin]
read_header_timeout = "5s"
`

const minimalTemplate = `name = "root"

[admin]
enabled = false
`
