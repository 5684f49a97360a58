package secrets

import (
	"os"
	"strings"
)

// EnvLoader returns a Loader that reads the specified environment variables.
// Missing variables are silently omitted from the result map.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

// ForgeTokenEnvLoader returns a Loader that scans the environment for
// variables named prefix+<TEAM_ID>, lower-cases the team ID, and maps them
// to vault keys of the form "forge_token:<team_id>". It supports per-team
// forge PATs without requiring the key set to be known at startup.
func ForgeTokenEnvLoader(prefix string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string)
		for _, kv := range os.Environ() {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || value == "" || !strings.HasPrefix(name, prefix) {
				continue
			}
			teamID := strings.ToLower(strings.TrimPrefix(name, prefix))
			if teamID == "" {
				continue
			}
			vals["forge_token:"+teamID] = value
		}
		return vals, nil
	}
}
