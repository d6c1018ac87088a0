package env

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/keboola/lockstep-cluster/internal/pkg/log"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

// dotEnvFiles in the order of priority.
var dotEnvFiles = []string{".env.local", ".env"} // nolint:gochecknoglobals

// LoadDotEnv returns the OS ENVs merged with ENVs from the ".env" files found in the directories.
// OS ENVs take precedence, an invalid file is skipped with a warning.
func LoadDotEnv(ctx context.Context, logger log.Logger, osEnvs *Map, dirs []string) *Map {
	envs := FromMap(osEnvs.ToMap())
	for _, dir := range dirs {
		for _, name := range dotEnvFiles {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err != nil || info.IsDir() {
				if err != nil && !errors.Is(err, os.ErrNotExist) {
					logger.Warnf(ctx, `cannot stat env file "%s": %s`, path, err)
				}
				continue
			}

			fileEnvs, err := loadFile(path)
			if err != nil {
				logger.Warn(ctx, err.Error())
				continue
			}

			envs.Merge(fileEnvs, false)
			logger.Infof(ctx, `loaded env file "%s"`, path)
		}
	}
	return envs
}

func loadFile(path string) (*Map, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot read env file "%s"`, path)
	}
	data, err := godotenv.Unmarshal(string(content))
	if err == nil {
		// A line without "=" at the end of the file is parsed as a value with an empty key
		if _, found := data[""]; found {
			err = errors.New("missing variable name")
		}
	}
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot parse env file "%s"`, path)
	}
	return FromMap(data), nil
}
