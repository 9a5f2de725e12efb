// Copyright 2025 The ACE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/consul"
	"github.com/knadh/koanf/providers/etcd"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigType selects the backend a Loader reads from.
type ConfigType string

const (
	ConfigTypeFile   ConfigType = "file"
	ConfigTypeConsul ConfigType = "consul"
	ConfigTypeEtcd   ConfigType = "etcd"
)

// LoaderOptions configures a Loader, mirroring the teacher's
// pkg/config.LoaderOptions.
type LoaderOptions struct {
	Type ConfigType

	// Path is a filesystem path (file), a KV key (consul), or a key
	// prefix (etcd).
	Path string

	// Endpoints lists backend addresses; defaults per Type if empty.
	Endpoints []string

	// Watch starts a background goroutine that reloads on change and
	// invokes OnChange.
	Watch bool

	OnChange func(*Config)
}

// Loader fetches a raw document from a koanf provider, expands ${VAR}
// references, decodes it via mapstructure into a *Config, and applies
// defaults/validation (spec §A.1.3).
type Loader struct {
	koanf    *koanf.Koanf
	options  LoaderOptions
	parser   *yaml.YAML
	stopChan chan struct{}
}

// NewLoader creates a Loader for opts. Type defaults to ConfigTypeFile.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Type == "" {
		opts.Type = ConfigTypeFile
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("config: path is required")
	}
	if len(opts.Endpoints) == 0 {
		switch opts.Type {
		case ConfigTypeConsul:
			opts.Endpoints = []string{"localhost:8500"}
		case ConfigTypeEtcd:
			opts.Endpoints = []string{"localhost:2379"}
		}
	}
	return &Loader{
		koanf:    koanf.New("."),
		options:  opts,
		parser:   yaml.Parser(),
		stopChan: make(chan struct{}),
	}, nil
}

// Load fetches, expands, decodes, defaults, and validates the
// configuration document.
func (l *Loader) Load() (*Config, error) {
	provider, parser, err := l.provider()
	if err != nil {
		return nil, err
	}
	if err := l.koanf.Load(provider, parser); err != nil {
		return nil, fmt.Errorf("config: failed to load from %s: %w", l.options.Type, err)
	}
	if err := l.expandEnv(); err != nil {
		return nil, fmt.Errorf("config: failed to expand environment variables: %w", err)
	}

	cfg := &Config{}
	if err := decodeConfig(l.koanf.Raw(), cfg); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	if l.options.Watch {
		go l.watch(provider)
	}
	return cfg, nil
}

func (l *Loader) provider() (koanf.Provider, koanf.Parser, error) {
	switch l.options.Type {
	case ConfigTypeFile:
		return file.Provider(l.options.Path), l.parser, nil
	case ConfigTypeConsul:
		consulCfg := api.DefaultConfig()
		consulCfg.Address = l.options.Endpoints[0]
		return consul.Provider(consul.Config{Cfg: consulCfg, Key: l.options.Path}), nil, nil
	case ConfigTypeEtcd:
		return etcd.Provider(etcd.Config{
			Endpoints:   l.options.Endpoints,
			DialTimeout: 5 * time.Second,
			Key:         l.options.Path,
		}), nil, nil
	default:
		return nil, nil, fmt.Errorf("config: unsupported type %q", l.options.Type)
	}
}

// watcher mirrors the subset of koanf provider behavior a watchable
// backend implements (file.Provider and consul.Provider both satisfy
// this; for a provider that does not, watch logs a warning and returns
// without reloading).
type watcher interface {
	Watch(cb func(event interface{}, err error)) error
}

func (l *Loader) watch(provider koanf.Provider) {
	w, ok := provider.(watcher)
	if !ok {
		slog.Warn("config: provider does not support watching", "type", l.options.Type)
		return
	}

	slog.Info("config: watcher started", "type", l.options.Type)
	err := w.Watch(func(event interface{}, err error) {
		select {
		case <-l.stopChan:
			return
		default:
		}
		if err != nil {
			slog.Error("config: watch error", "err", err)
			return
		}

		_, parser, perr := l.provider()
		if perr != nil {
			slog.Error("config: watch reload failed to select provider", "err", perr)
			return
		}
		if err := l.koanf.Load(provider, parser); err != nil {
			slog.Error("config: watch reload failed", "err", err)
			return
		}
		if err := l.expandEnv(); err != nil {
			slog.Error("config: watch env expansion failed", "err", err)
			return
		}
		cfg := &Config{}
		if err := decodeConfig(l.koanf.Raw(), cfg); err != nil {
			slog.Error("config: watch decode failed", "err", err)
			return
		}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			slog.Error("config: watch validation failed", "err", err)
			return
		}
		slog.Info("config: reloaded successfully")
		if l.options.OnChange != nil {
			l.options.OnChange(cfg)
		}
	})
	if err != nil {
		slog.Error("config: watcher stopped", "err", err)
	}
}

// expandEnv resolves ${VAR}/$VAR references throughout the loaded
// document and reloads the result back into l.koanf via confmap, so
// the rest of Load sees only fully-expanded values.
func (l *Loader) expandEnv() error {
	expanded, ok := ExpandEnvVarsInData(l.koanf.Raw()).(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected type after environment expansion")
	}
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return err
	}
	l.koanf = k
	return nil
}

// SetOnChange updates the callback a running Watch invokes.
func (l *Loader) SetOnChange(fn func(*Config)) { l.options.OnChange = fn }

// Stop ends a background watch goroutine started by Load.
func (l *Loader) Stop() { close(l.stopChan) }

// ParseConfigType validates a CLI-supplied config backend name.
func ParseConfigType(s string) (ConfigType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "file":
		return ConfigTypeFile, nil
	case "consul":
		return ConfigTypeConsul, nil
	case "etcd":
		return ConfigTypeEtcd, nil
	default:
		return "", fmt.Errorf("config: invalid type %q (valid: file, consul, etcd)", s)
	}
}

// Load is a convenience wrapper that loads a single configuration file.
func Load(path string) (*Config, error) {
	loader, err := NewLoader(LoaderOptions{Type: ConfigTypeFile, Path: path})
	if err != nil {
		return nil, err
	}
	return loader.Load()
}
