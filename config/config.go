// Package config loads pathlink settings from HCL files.
//
// Every block and attribute is optional; anything left out keeps its
// default:
//
//	log {
//	  level  = "debug"
//	  format = "json"
//	}
//
//	router {
//	  grid_step       = 15
//	  elbow_penalty   = 30
//	  overlap_penalty = 120
//	  max_open        = 20000
//	  cancel_check    = 256
//	  padding         = 0
//	  workers         = 4
//	  cache_size      = 512
//	}
//
//	groups {
//	  group   = 8
//	  complex = 12
//	  pathway = 8
//	}
package config

import (
	"fmt"
	"io"
	"log/slog"

	"pathlink/core"
	"pathlink/groups"
	"pathlink/logging"
	"pathlink/pathfinding"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete pathlink configuration.
type Config struct {
	Log    LogConfig
	Router RouterConfig
	Groups groups.Margins
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string
	Format string
}

// RouterConfig holds the connector router settings.
type RouterConfig struct {
	Cost                pathfinding.PathCost
	MaxOpen             int
	CancelCheckInterval int
	Padding             float64
	Workers             int // 0 means one per CPU
	CacheSize           int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Router: RouterConfig{
			Cost:                pathfinding.DefaultPathCost,
			MaxOpen:             pathfinding.DefaultMaxOpen,
			CancelCheckInterval: pathfinding.DefaultCancelCheckInterval,
			CacheSize:           512,
		},
		Groups: groups.DefaultMargins(),
	}
}

type hclFile struct {
	Log    *hclLog    `hcl:"log,block"`
	Router *hclRouter `hcl:"router,block"`
	Groups *hclGroups `hcl:"groups,block"`
}

type hclLog struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type hclRouter struct {
	GridStep       *float64 `hcl:"grid_step,optional"`
	ElbowPenalty   *float64 `hcl:"elbow_penalty,optional"`
	OverlapPenalty *float64 `hcl:"overlap_penalty,optional"`
	MaxOpen        *int     `hcl:"max_open,optional"`
	CancelCheck    *int     `hcl:"cancel_check,optional"`
	Padding        *float64 `hcl:"padding,optional"`
	Workers        *int     `hcl:"workers,optional"`
	CacheSize      *int     `hcl:"cache_size,optional"`
}

type hclGroups struct {
	None    *float64 `hcl:"none,optional"`
	Group   *float64 `hcl:"group,optional"`
	Complex *float64 `hcl:"complex,optional"`
	Pathway *float64 `hcl:"pathway,optional"`
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(file, path)
}

// Parse decodes configuration source. The filename is used in diagnostics.
func Parse(src []byte, filename string) (Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) (Config, error) {
	var raw hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}

	cfg := Default()
	if l := raw.Log; l != nil {
		set(&cfg.Log.Level, l.Level)
		set(&cfg.Log.Format, l.Format)
	}
	if r := raw.Router; r != nil {
		set(&cfg.Router.Cost.GridStep, r.GridStep)
		set(&cfg.Router.Cost.ElbowPenalty, r.ElbowPenalty)
		set(&cfg.Router.Cost.OverlapPenalty, r.OverlapPenalty)
		set(&cfg.Router.MaxOpen, r.MaxOpen)
		set(&cfg.Router.CancelCheckInterval, r.CancelCheck)
		set(&cfg.Router.Padding, r.Padding)
		set(&cfg.Router.Workers, r.Workers)
		set(&cfg.Router.CacheSize, r.CacheSize)
	}
	if g := raw.Groups; g != nil {
		for style, v := range map[core.GroupStyle]*float64{
			core.GroupStyleNone:    g.None,
			core.GroupStyleGroup:   g.Group,
			core.GroupStyleComplex: g.Complex,
			core.GroupStylePathway: g.Pathway,
		} {
			if v != nil {
				cfg.Groups[style] = *v
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return cfg, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if err := c.Router.Cost.Validate(); err != nil {
		return err
	}
	if c.Router.Cost.OverlapPenalty <= c.Router.Cost.ElbowPenalty {
		return fmt.Errorf("overlap penalty %g must exceed elbow penalty %g",
			c.Router.Cost.OverlapPenalty, c.Router.Cost.ElbowPenalty)
	}
	if c.Router.MaxOpen <= 0 || c.Router.CancelCheckInterval <= 0 {
		return fmt.Errorf("max_open and cancel_check must be positive")
	}
	if c.Router.Padding < 0 || c.Router.Workers < 0 || c.Router.CacheSize < 0 {
		return fmt.Errorf("padding, workers and cache_size must not be negative")
	}
	for style, m := range c.Groups {
		if m < 0 {
			return fmt.Errorf("negative margin %g for %s groups", m, style)
		}
	}
	return nil
}

// NewRouter builds a connector router from the router settings.
func (c Config) NewRouter() *pathfinding.Router {
	r := pathfinding.NewRouter(c.Router.Cost)
	r.SetMaxOpen(c.Router.MaxOpen)
	r.SetCancelCheckInterval(c.Router.CancelCheckInterval)
	return r
}

// NewLogger builds a logger writing to w from the log settings.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return logging.New(c.Log.Level, c.Log.Format, w)
}
