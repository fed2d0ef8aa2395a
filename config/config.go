// Package config loads Grizzly's engine-level settings from an INI file:
// an ini.File-backed struct with typed fields and string-duration
// companions resolved at load time. The knobs are the page size for the
// cost model, scheduler tick resolution, default I/O timeout, and the
// default save compression codec.
package config

import (
	"time"

	"github.com/juju/errors"
	"gopkg.in/ini.v1"
)

// Cfg is Grizzly's engine-level configuration, loaded from an INI file.
type Cfg struct {
	Raw *ini.File

	DataDir string
	AppName string

	// PageSize is the cost model's page_size constant (scan cost is
	// rows x row_size / page_size).
	PageSize int

	// SchedulerTick bounds how often the background worker wakes to scan
	// schedules; the scheduler clamps it to 1s resolution.
	SchedulerTick         string
	SchedulerTickDuration time.Duration

	// DefaultTimeout is the HTTP/ATTACH I/O boundary timeout.
	DefaultTimeout         string
	DefaultTimeoutDuration time.Duration

	// DefaultCompression is loaded from the config file, but SAVE DATABASE
	// does not read it: without a WITH COMPRESSION clause the artifact is
	// written uncompressed ("none").
	DefaultCompression string

	LogLevel string
	LogError string
	LogInfos string
}

// NewCfg returns a Cfg with the built-in defaults.
func NewCfg() *Cfg {
	return &Cfg{
		Raw:                 ini.Empty(),
		AppName:             "grizzly",
		PageSize:            4096,
		SchedulerTick:       "1s",
		DefaultTimeout:      "30s",
		DefaultCompression:  "none",
		LogLevel:            "info",
	}
}

// Load reads path (an INI file) into a fresh Cfg, falling back to
// NewCfg()'s defaults for any key the file omits.
func Load(path string) (*Cfg, error) {
	cfg := NewCfg()
	if path == "" {
		if err := cfg.resolveDurations(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	raw, err := ini.Load(path)
	if err != nil {
		return nil, errors.Annotatef(err, "loading config file %q", path)
	}
	cfg.Raw = raw

	sec := raw.Section("grizzly")
	cfg.DataDir = sec.Key("data_dir").MustString(cfg.DataDir)
	cfg.PageSize = sec.Key("page_size").MustInt(cfg.PageSize)
	cfg.SchedulerTick = sec.Key("scheduler_tick").MustString(cfg.SchedulerTick)
	cfg.DefaultTimeout = sec.Key("default_timeout").MustString(cfg.DefaultTimeout)
	cfg.DefaultCompression = sec.Key("default_compression").MustString(cfg.DefaultCompression)
	cfg.LogLevel = sec.Key("log_level").MustString(cfg.LogLevel)
	cfg.LogError = sec.Key("log_error").MustString(cfg.LogError)
	cfg.LogInfos = sec.Key("log_infos").MustString(cfg.LogInfos)

	if err := cfg.resolveDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Cfg) resolveDurations() error {
	d, err := time.ParseDuration(c.SchedulerTick)
	if err != nil {
		return errors.Annotatef(err, "invalid scheduler_tick %q", c.SchedulerTick)
	}
	c.SchedulerTickDuration = d

	d, err = time.ParseDuration(c.DefaultTimeout)
	if err != nil {
		return errors.Annotatef(err, "invalid default_timeout %q", c.DefaultTimeout)
	}
	c.DefaultTimeoutDuration = d
	return nil
}
