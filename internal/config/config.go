package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type GeneralConfig struct {
	Name string `yaml:"name"`

	// solver
	TimeLimit     int   `yaml:"time_limit"` // ms
	MaxBacktracks int   `yaml:"max_backtracks"`
	Horizon       int   `yaml:"horizon"`
	Seed          int64 `yaml:"seed"`
	Optimize      bool  `yaml:"optimize"`
	RepairMode    bool  `yaml:"repair"`
	Restarts      bool  `yaml:"restarts"`
	MaxRestarts   int   `yaml:"max_restarts"`
	// Durations overrides the constant duration of action kinds, keyed by
	// names such as migrate_vm or boot_node.
	Durations map[string]int `yaml:"durations"`
	// DurationAttributes lets an element attribute named after an action
	// kind, such as boot_node, override the duration of that action.
	DurationAttributes bool `yaml:"duration_attributes"`
	// MigrationResource makes a migration last
	// migration_factor * consumption + 1.
	MigrationResource string `yaml:"migration_resource"`
	MigrationFactor   int    `yaml:"migration_factor"`

	// partitioning
	PartitionSize int `yaml:"partition_size"`
	Workers       int `yaml:"workers"`

	// daemon
	Namespace            string `yaml:"namespace"`
	ConnectorKind        string `yaml:"connector"`
	InstancePath         string `yaml:"instance"`
	DaemonPeriodDuration int    `yaml:"daemon_period_duration"` // ms
	Listen               string `yaml:"listen"`
}

var SchedulerGeneralConfig = Default()

// General constants:
const MB = 1 << 20

func Default() GeneralConfig {
	return GeneralConfig{
		Name:                 "reconf",
		TimeLimit:            10000,
		Optimize:             true,
		Restarts:             true,
		MaxRestarts:          -1,
		Seed:                 1,
		Workers:              0,
		Namespace:            "default",
		ConnectorKind:        "file",
		DaemonPeriodDuration: 30000,
		Listen:               ":8080",
	}
}

// Load reads a YAML config on top of the defaults. Unknown keys are errors.
func Load(path string) (GeneralConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "can not read config file")
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "can not parse config file %s", path)
	}
	return cfg, cfg.Validate()
}

func (c GeneralConfig) Validate() error {
	switch {
	case c.TimeLimit < 0:
		return errors.Errorf("time_limit must not be negative: %d", c.TimeLimit)
	case c.MaxBacktracks < 0:
		return errors.Errorf("max_backtracks must not be negative: %d", c.MaxBacktracks)
	case c.Horizon < 0:
		return errors.Errorf("horizon must not be negative: %d", c.Horizon)
	case c.PartitionSize < 0:
		return errors.Errorf("partition_size must not be negative: %d", c.PartitionSize)
	case c.MigrationFactor < 0:
		return errors.Errorf("migration_factor must not be negative: %d", c.MigrationFactor)
	case c.Workers < 0:
		return errors.Errorf("workers must not be negative: %d", c.Workers)
	}
	for kind, d := range c.Durations {
		if d < 0 {
			return errors.Errorf("duration of %s must not be negative: %d", kind, d)
		}
	}
	return nil
}

func (c GeneralConfig) TimeLimitDuration() time.Duration {
	return time.Duration(c.TimeLimit) * time.Millisecond
}

func (c GeneralConfig) DaemonPeriod() time.Duration {
	return time.Duration(c.DaemonPeriodDuration) * time.Millisecond
}
