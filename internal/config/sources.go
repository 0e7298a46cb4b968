package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// envMu serializes loads that overlay file values on the environment
var envMu sync.Mutex

// fileValues merges the dotenv and YAML files. The dotenv file takes
// precedence over the YAML file.
func fileValues(opts Options) (map[string]string, error) {
	values := make(map[string]string)

	if opts.EnvFile != "" {
		dotenv, err := godotenv.Read(opts.EnvFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read env file %s: %w", opts.EnvFile, err)
		default:
			for k, v := range dotenv {
				values[k] = v
			}
		}
	}

	if opts.ConfigFile != "" {
		yamlValues, err := readYAML(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		for k, v := range yamlValues {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}

	return values, nil
}

// withFileValues exports the file values missing from the environment while
// fn runs and removes them again before returning. Variables that are already
// set are never touched.
func withFileValues(values map[string]string, fn func() error) error {
	envMu.Lock()
	defer envMu.Unlock()

	var added []string
	defer func() {
		for _, key := range added {
			_ = os.Unsetenv(key)
		}
	}()

	for key, value := range values {
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		added = append(added, key)
	}

	return fn()
}

func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, v := range raw {
		switch typed := v.(type) {
		case nil:
		case string:
			values[key] = typed
		case []interface{}:
			encoded, err := json.Marshal(typed)
			if err != nil {
				return nil, fmt.Errorf("config file %s: key %s: %w", path, key, err)
			}
			values[key] = string(encoded)
		default:
			values[key] = fmt.Sprint(typed)
		}
	}
	return values, nil
}
