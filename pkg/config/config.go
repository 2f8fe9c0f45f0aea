// Package config loads typed settings from environment variables. A dotenv
// file given with -env, or ./.env when present, seeds the environment first;
// variables already set in the process are never overwritten by a file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const defaultEnvFile = ".env"

var (
	envFlag  string
	loadOnce sync.Once
	loadErr  error
)

// validator is implemented by config types that check themselves after loading.
type validator interface {
	Validate() error
}

func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

// New processes the section prefix into a T and validates it when T knows how.
func New[T any](prefix string) (*T, error) {
	if err := seedEnvironment(); err != nil {
		return nil, err
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, fmt.Errorf("load %s config: %w", describe(prefix), err)
	}

	if v, ok := any(&conf).(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", describe(prefix), err)
		}
	}
	return &conf, nil
}

func describe(prefix string) string {
	if prefix == "" {
		return "root"
	}
	return strings.ToLower(prefix)
}

// seedEnvironment loads the env files once per process. -env accepts a comma
// separated list; later files do not override earlier ones.
func seedEnvironment() error {
	loadOnce.Do(func() {
		files := envFiles()
		if len(files) == 0 {
			loadErr = exportEnvironmentIfExists(defaultEnvFile)
			if loadErr != nil {
				loadErr = fmt.Errorf("failed to load default env file: %w", loadErr)
			}
			return
		}
		for _, file := range files {
			if err := exportEnvironment(file); err != nil {
				loadErr = fmt.Errorf("failed to load env file %s: %w", file, err)
				return
			}
		}
	})
	return loadErr
}

func envFiles() []string {
	if flag.Lookup("env") == nil {
		flag.StringVar(&envFlag, "env", "", "comma separated .env files")
	}
	if !flag.Parsed() {
		flag.Parse()
	}

	var files []string
	for _, f := range strings.Split(envFlag, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}

func exportEnvironmentIfExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return exportEnvironment(path)
}

func exportEnvironment(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for k, val := range v.AllSettings() {
		key := strings.ToUpper(k)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}
