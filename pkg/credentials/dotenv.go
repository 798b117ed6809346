package credentials

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// ReadEnvFile reads a .env file from dir (the current directory when dir is
// empty) and returns its variables and the resolved path.
// Returns nil, "" if the file cannot be read.
func ReadEnvFile(dir string) (map[string]string, string) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, ""
		}
		dir = cwd
	}

	envPath := filepath.Join(dir, ".env")
	vars, err := godotenv.Read(envPath)
	if err != nil {
		return nil, ""
	}

	return vars, envPath
}

// HarvestKeys extracts API keys for supported providers from a set of
// environment variables, keyed by provider name. Providers whose variable
// is missing or empty are left out.
func HarvestKeys(vars map[string]string) map[string]string {
	keys := make(map[string]string)
	for _, provider := range SupportedProviders() {
		if v := vars[EnvVarForProvider(provider)]; v != "" {
			keys[provider] = v
		}
	}

	return keys
}
