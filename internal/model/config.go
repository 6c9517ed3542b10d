package model

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	PingMethodExec = "exec"
	PingMethodICMP = "icmp"

	FormatHTML = "html"
	FormatBOM  = "bom"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version     int     `json:"version" yaml:"version"` // fixed 0 for now
	Targets     string  `json:"targets" yaml:"targets"` // path to the target list
	Ports       []int   `json:"ports" yaml:"ports"`
	PortTimeout string  `json:"port_timeout" yaml:"port_timeout"`
	Concurrency int     `json:"concurrency" yaml:"concurrency"` // hosts checked at once
	Ping        Ping    `json:"ping" yaml:"ping"`
	Report      Output  `json:"report" yaml:"report"`
	Service     Service `json:"service" yaml:"service"`
	History     History `json:"history" yaml:"history"`
}

type Ping struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Method         string `json:"method" yaml:"method"` // "exec" | "icmp"
	Binary         string `json:"binary" yaml:"binary"` // ping binary for exec method
	Privileged     bool   `json:"privileged" yaml:"privileged"`
	Timeout        string `json:"timeout" yaml:"timeout"`                 // reply wait
	CommandTimeout string `json:"command_timeout" yaml:"command_timeout"` // whole ping process
}

// Output selects the report formats produced by each run.
type Output struct {
	Formats    []string    `json:"formats" yaml:"formats"`                           // "html" | "bom"
	Repository *Repository `json:"repository,omitempty" yaml:"repository,omitempty"` // BOM upload
}

// Repository is a BOM repository every run is uploaded to as CycloneDX.
type Repository struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"` // scheme and host, no path
}

type Service struct {
	Mode     string    `json:"mode" yaml:"mode"` // "manual" | "timer"
	Verbose  bool      `json:"verbose" yaml:"verbose"`
	Dir      string    `json:"dir" yaml:"dir"` // output directory, empty => stdout
	Schedule *Schedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// Schedule of the timer mode. Cron takes precedence over Duration.
type Schedule struct {
	Cron     string `json:"cron,omitempty" yaml:"cron,omitempty"`         // 5 fields or @macro
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"` // ISO-8601, e.g. PT5M
}

type History struct {
	Path string `json:"path" yaml:"path"` // sqlite database, empty disables history
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}

// DefaultConfig returns a configuration with every default of the schema applied.
func DefaultConfig() Config {
	cfg, err := LoadConfig(strings.NewReader("version: 0\n"))
	if err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

func (c Config) PortList() []uint16 {
	if len(c.Ports) == 0 {
		return append([]uint16(nil), DefaultPorts...)
	}
	ports := make([]uint16, 0, len(c.Ports))
	for _, p := range c.Ports {
		ports = append(ports, uint16(p))
	}
	return ports
}

func (c Config) PortTimeoutDuration() time.Duration {
	return durationOr(c.PortTimeout, time.Second)
}

func (p Ping) TimeoutDuration() time.Duration {
	return durationOr(p.Timeout, time.Second)
}

func (p Ping) CommandTimeoutDuration() time.Duration {
	return durationOr(p.CommandTimeout, 2*time.Second)
}

// durationOr parses s, the schema already guarantees the format
func durationOr(s string, dflt time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return dflt
	}
	return d
}
