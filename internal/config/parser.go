package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"seekplan/internal/algot"
	"seekplan/internal/logging"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

func LoadConfig(filepath string) (*SimulationConfig, error) {
	config, _, err := LoadConfigWithContent(filepath)
	return config, err
}

func LoadConfigWithContent(filepath string) (*SimulationConfig, string, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read config file")
		return nil, "", err
	}

	originalContent := string(data)
	config, err := ParseConfig(originalContent)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to load config file")
		return nil, "", err
	}
	return config, originalContent, nil
}

// ParseConfig expands ${VAR} references, decodes the YAML, applies defaults
// and validates the result.
func ParseConfig(content string) (*SimulationConfig, error) {
	expanded := expandEnvVars(content)

	var config SimulationConfig
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&config)
	if config.Simulation.Data.DB == nil {
		config.Simulation.Data.DB = DatabaseFromEnv()
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

// DatabaseFromEnv builds an InfluxDB config from INFLUXDB_* variables, or
// returns nil when INFLUXDB_HOST is unset.
func DatabaseFromEnv() *DatabaseConfig {
	host := strings.TrimSpace(os.Getenv("INFLUXDB_HOST"))
	if host == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:     host,
		Name:     os.Getenv("INFLUXDB_BUCKET"),
		User:     os.Getenv("INFLUXDB_USER"),
		Password: os.Getenv("INFLUXDB_TOKEN"),
		Org:      os.Getenv("INFLUXDB_ORG"),
	}
}

func applyDefaults(config *SimulationConfig) {
	sim := &config.Simulation
	if sim.Scheduler.Policy == "" {
		sim.Scheduler.Policy = DefaultPolicy
	}
	sim.Scheduler.Policy = strings.ToLower(strings.TrimSpace(sim.Scheduler.Policy))
	if sim.Device.Sectors == 0 {
		sim.Device.Sectors = DefaultDeviceSectors
	}
	if sim.Host.Merge && sim.Host.MaxMergeSectors == 0 {
		sim.Host.MaxMergeSectors = DefaultMaxMergeSectors
	}

	tr := &config.Trace
	if tr.Generator == "" {
		if len(tr.Requests) > 0 {
			tr.Generator = GeneratorExplicit
		} else {
			tr.Generator = GeneratorRandom
		}
	}
	tr.Generator = strings.ToLower(tr.Generator)
	if tr.Size.Min == 0 {
		tr.Size.Min = 8
	}
	if tr.Size.Max == 0 {
		tr.Size.Max = tr.Size.Min
	}
	for i := range tr.Requests {
		if tr.Requests[i].Sectors == 0 {
			tr.Requests[i].Sectors = 8
		}
	}
}

func validateConfig(config *SimulationConfig) error {
	sim := config.Simulation
	if sim.Name == "" {
		return fmt.Errorf("simulation name is required")
	}

	if sim.Scheduler.Capacity < 0 {
		return fmt.Errorf("scheduler capacity must not be negative")
	}
	if sim.Scheduler.Capacity > algot.MaxCapacity {
		return fmt.Errorf("scheduler capacity %d exceeds the maximum of %d", sim.Scheduler.Capacity, algot.MaxCapacity)
	}
	if sim.Scheduler.DirtyThreshold < 0 {
		return fmt.Errorf("scheduler dirty_threshold must not be negative")
	}
	if lvl := sim.Scheduler.LogLevel; lvl != "" {
		if _, err := logrus.ParseLevel(lvl); err != nil {
			return fmt.Errorf("scheduler log_level: %w", err)
		}
	}
	if sim.Scheduler.StartSector >= sim.Device.Sectors {
		return fmt.Errorf("start_sector %d is beyond the device (%d sectors)", sim.Scheduler.StartSector, sim.Device.Sectors)
	}

	if sim.Device.SettleUS < 0 || sim.Device.SeekNSPerSector < 0 || sim.Device.TransferUSPerSector < 0 {
		return fmt.Errorf("device timings must not be negative")
	}
	if sim.Host.QueueDepth < 0 {
		return fmt.Errorf("host queue_depth must not be negative")
	}

	if db := sim.Data.DB; db != nil {
		if db.Host == "" || db.Name == "" || db.User == "" || db.Password == "" || db.Org == "" {
			return fmt.Errorf("incomplete database configuration")
		}
	}

	return validateTrace(&config.Trace, sim.Device)
}

func validateTrace(tr *TraceConfig, dev DeviceConfig) error {
	switch tr.Generator {
	case GeneratorRandom, GeneratorSequential, GeneratorMixed:
		if tr.Count <= 0 {
			return fmt.Errorf("trace count must be greater than 0")
		}
	case GeneratorExplicit:
		if len(tr.Requests) == 0 {
			return fmt.Errorf("explicit trace needs at least one request")
		}
	default:
		return fmt.Errorf("unknown trace generator %q", tr.Generator)
	}

	if tr.Size.Min > tr.Size.Max {
		return fmt.Errorf("trace size min %d exceeds max %d", tr.Size.Min, tr.Size.Max)
	}
	if uint64(tr.Size.Max) >= dev.Sectors {
		return fmt.Errorf("trace size max %d does not fit on the device", tr.Size.Max)
	}
	if tr.WriteRatio < 0 || tr.WriteRatio > 1 {
		return fmt.Errorf("write_ratio must be within [0, 1]")
	}
	if tr.SequentialRatio < 0 || tr.SequentialRatio > 1 {
		return fmt.Errorf("sequential_ratio must be within [0, 1]")
	}
	if tr.InterarrivalUS < 0 {
		return fmt.Errorf("interarrival_us must not be negative")
	}

	for i, r := range tr.Requests {
		if r.AtUS < 0 {
			return fmt.Errorf("request %d: at_us must not be negative", i)
		}
		if r.Sector+uint64(r.Sectors) > dev.Sectors {
			return fmt.Errorf("request %d: sectors %d+%d beyond the device", i, r.Sector, r.Sectors)
		}
	}
	return nil
}
