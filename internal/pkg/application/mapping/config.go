package mapping

import (
	"fmt"
	"io"

	"github.com/diwise/entity-mapper/pkg/schema"
	yaml "gopkg.in/yaml.v2"
)

type NotificationConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type Config struct {
	Notifications NotificationConfig `yaml:"notifications"`
	Entities      []schema.Entity    `yaml:"entities"`
}

// Registry validates the configured entity descriptors
func (cfg *Config) Registry() (*schema.Registry, error) {
	return schema.NewRegistry(cfg.Entities...)
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return cfg, nil
}
