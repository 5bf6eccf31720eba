package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/logger"
	"github.com/buckleypaul/chipcheck/internal/store"
)

// env is what every command needs: the resolved root, merged config, the
// record store and a logger.
type env struct {
	root     string
	cfg      config.Config
	store    *store.Store
	log      zerolog.Logger
	closeLog func() error
}

// loadEnv resolves the root and sets up logging. console receives
// human-readable log lines; nil keeps logs in the file only.
func loadEnv(g *globalFlags, console io.Writer) (*env, error) {
	root, err := resolveRoot(g.root)
	if err != nil {
		return nil, err
	}
	state := config.StateDir(root)

	closeLog, err := logger.Setup(logger.Config{
		Root:    state,
		Debug:   g.debug,
		Console: console,
	})
	if err != nil {
		return nil, err
	}

	return &env{
		root:     root,
		cfg:      config.Load(root),
		store:    store.New(state),
		log:      logger.L(),
		closeLog: closeLog,
	}, nil
}

func (e *env) close() {
	if e.closeLog != nil {
		_ = e.closeLog()
	}
}

func resolveRoot(flag string) (string, error) {
	if flag == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		flag = wd
	}
	abs, err := filepath.Abs(flag)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %s is not a directory", abs)
	}
	return abs, nil
}
