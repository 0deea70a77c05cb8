package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyDatabase = "database"
	keyLoader   = "loader"
	keyLogging  = "logging"
	keyOutput   = "output"
	keyPlan     = "plan"
)

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	for key, node := range overlay {
		if err = unmarshalSection(target, key, &node); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}
	return nil
}

// unmarshalSection decodes node into a fresh value of the section named key
// and replaces that section of target.
func unmarshalSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyDatabase:
		var v DatabaseConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Database = v
	case keyLoader:
		var v LoaderConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Loader = v
	case keyLogging:
		var v LoggingConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Logging = v
	case keyOutput:
		var v OutputConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Output = v
	case keyPlan:
		var v PlanConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Plan = v
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
