// Package secrets resolves credentials that should not be typed on the command
// line, such as the account password.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when no source holds the secret. Callers
// usually fall back to an interactive prompt.
var ErrNotConfigured = errors.New("not configured")

// Source describes where to look for a secret, in order of precedence: File,
// then Env, then Value.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// File points to a file containing the secret value.
	File string
	// Env is the name of an environment variable holding the secret.
	Env string
	// Value is an inline secret value provided via configuration.
	Value string
}

// Load returns the first usable secret of src, trimmed of surrounding
// whitespace. An unreadable or empty file is an error: it was configured on
// purpose and silently falling back would hide the mistake.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if env := strings.TrimSpace(src.Env); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return secret, nil
		}
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	return "", fmt.Errorf("%s is %w", name, ErrNotConfigured)
}
