package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// probeFile is the YAML schema for a probe file. Durations are strings so
// the file can say "30s" rather than nanosecond counts.
type probeFile struct {
	Command         string            `yaml:"command"`
	Args            []string          `yaml:"args"`
	Cwd             string            `yaml:"cwd"`
	Env             map[string]string `yaml:"env"`
	ReadyMarker     string            `yaml:"ready_marker"`
	Tool            string            `yaml:"tool"`
	RequestID       int64             `yaml:"request_id"`
	ReadyTimeout    string            `yaml:"ready_timeout"`
	ResponseTimeout string            `yaml:"response_timeout"`
	Strict          bool              `yaml:"strict"`
}

// LoadFile overlays a YAML probe file onto the options. Only fields set in
// the file are written.
func (o *Options) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read probe file: %w", err)
	}

	var pf probeFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse probe file %s: %w", path, err)
	}

	if pf.Command != "" {
		o.Command = pf.Command
	}

	if len(pf.Args) > 0 {
		o.Args = pf.Args
	}

	if pf.Cwd != "" {
		o.Cwd = pf.Cwd
	}

	if len(pf.Env) > 0 {
		o.Env = pf.Env
	}

	if pf.ReadyMarker != "" {
		o.ReadyMarker = pf.ReadyMarker
	}

	if pf.Tool != "" {
		o.Tool = pf.Tool
	}

	if pf.RequestID != 0 {
		o.RequestID = pf.RequestID
	}

	if pf.ReadyTimeout != "" {
		d, err := time.ParseDuration(pf.ReadyTimeout)
		if err != nil {
			return fmt.Errorf("parse ready_timeout in %s: %w", path, err)
		}

		o.ReadyTimeout = d
	}

	if pf.ResponseTimeout != "" {
		d, err := time.ParseDuration(pf.ResponseTimeout)
		if err != nil {
			return fmt.Errorf("parse response_timeout in %s: %w", path, err)
		}

		o.ResponseTimeout = d
	}

	if pf.Strict {
		o.Strict = true
	}

	return nil
}
