// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optcte/pkg/util/log"
	"gopkg.in/yaml.v3"
)

// Settings control an optimizer session. They are usually read from a YAML
// document such as:
//
//	search_workers: 8
//	enable_inlining: false
//	verbosity: 2
//	log_every: 30s
type Settings struct {
	// SearchWorkers is the maximum number of goroutines that derive consumer
	// statistics at the same time.
	SearchWorkers int `yaml:"search_workers"`

	// EnableInlining allows CTEs with a single consumer to be reported as
	// inlining candidates.
	EnableInlining bool `yaml:"enable_inlining"`

	// Verbosity is the log verbosity used by the session; see log.V.
	Verbosity log.Level `yaml:"verbosity"`

	// LogEvery is the minimum interval between progress messages logged
	// during the search phase.
	LogEvery time.Duration `yaml:"log_every"`
}

// DefaultSettings returns the settings used for fields that a settings
// document leaves out.
func DefaultSettings() Settings {
	return Settings{
		SearchWorkers:  runtime.GOMAXPROCS(0),
		EnableInlining: true,
		LogEvery:       10 * time.Second,
	}
}

// ParseSettings parses a YAML settings document. Unknown fields are
// rejected. An empty document yields the default settings.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, errors.Wrap(err, "parsing optimizer settings")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads and parses the settings document at path.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "reading optimizer settings from %s", path)
	}
	s, err := ParseSettings(data)
	return s, errors.Wrapf(err, "%s", path)
}

// Validate returns an error if any of the settings is out of range.
func (s *Settings) Validate() error {
	if s.SearchWorkers < 1 {
		return errors.Newf("search_workers must be at least 1, found %d", s.SearchWorkers)
	}
	if s.Verbosity < 0 {
		return errors.Newf("verbosity must not be negative, found %d", s.Verbosity)
	}
	if s.LogEvery < 0 {
		return errors.Newf("log_every must not be negative, found %s", s.LogEvery)
	}
	return nil
}
