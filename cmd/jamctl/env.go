package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cuemby/jamctl/pkg/config"
	"github.com/cuemby/jamctl/pkg/release"
	"github.com/cuemby/jamctl/pkg/storage"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// cliEnv is what every command needs: the toolchain root and its history
type cliEnv struct {
	paths   config.Paths
	history storage.Store
}

func loadEnv() (*cliEnv, error) {
	root, err := config.ResolveRoot(viper.GetString("home"))
	if err != nil {
		return nil, err
	}
	paths := config.NewPaths(root)
	return &cliEnv{
		paths:   paths,
		history: storage.NewLedger(paths.HistoryDB()),
	}, nil
}

// activeInstall returns the config and its active install record
func (e *cliEnv) activeInstall() (*types.Config, *types.InstallRecord, error) {
	cfg, err := config.Load(e.paths.Root)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: run 'jamctl setup' first", types.ErrNotInstalled)
	}
	if err != nil {
		return nil, nil, err
	}
	rec, err := release.Info(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: run 'jamctl setup' first", err)
	}
	return cfg, rec, nil
}

// printStructured writes v as JSON or YAML
func printStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (use text, json or yaml)", format)
	}
}
