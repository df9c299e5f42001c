package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvKeyName is the environment variable holding the API key.
const EnvKeyName = "OPENAI_API_KEY"

// envFileName is the dotenv file consulted when the variable is unset.
const envFileName = ".env"

// KeySource identifies where an API key was resolved from.
type KeySource int

const (
	KeyMissing KeySource = iota
	KeyFromEnv
	KeyFromDotenv
	KeyFromPrompt
)

func (s KeySource) String() string {
	switch s {
	case KeyFromEnv:
		return "environment"
	case KeyFromDotenv:
		return ".env file"
	case KeyFromPrompt:
		return "prompt"
	default:
		return "missing"
	}
}

// EnvFilePath returns the path of the workspace .env file.
func EnvFilePath(workspace string) string {
	return filepath.Join(workspace, envFileName)
}

// ResolveAPIKey looks for an API key in the process environment first,
// then in the workspace .env file. The returned key is normalized; an
// empty key means the caller has to prompt.
func ResolveAPIKey(workspace string) (string, KeySource) {
	if key := NormalizeKey(os.Getenv(EnvKeyName)); key != "" {
		return key, KeyFromEnv
	}

	vars, err := godotenv.Read(EnvFilePath(workspace))
	if err == nil {
		if key := NormalizeKey(vars[EnvKeyName]); key != "" {
			return key, KeyFromDotenv
		}
	}

	return "", KeyMissing
}

// NormalizeKey trims whitespace and strips one enclosing pair of single
// or double quotes. Pasted keys frequently arrive quoted from shell
// snippets or config fragments.
func NormalizeKey(raw string) string {
	key := strings.TrimSpace(raw)
	if len(key) >= 2 {
		first, last := key[0], key[len(key)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			key = key[1 : len(key)-1]
		}
	}
	return strings.TrimSpace(key)
}

// UpsertEnvKey writes the key into the workspace .env file, replacing an
// existing OPENAI_API_KEY line or appending one. Other lines, comments
// included, are preserved as they are.
func UpsertEnvKey(workspace, key string) error {
	path := EnvFilePath(workspace)

	var lines []string
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", envFileName, err)
	}
	if err == nil {
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}

	entry := EnvKeyName + "=" + key
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), EnvKeyName+"=") {
			lines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, entry)
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(out), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", envFileName, err)
	}
	return nil
}
