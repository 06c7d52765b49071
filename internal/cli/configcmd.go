package cli

import (
	"encoding/json"
	"fmt"
	"os"
)

// ConfigCmd prints the effective configuration after defaults, file, and
// environment are merged. Secrets are masked.
type ConfigCmd struct{}

func (c *ConfigCmd) Run(globals *Globals) error {
	cfg, err := globals.loadConfig()
	if err != nil {
		return err
	}
	if cfg.MQTT.Password != "" {
		cfg.MQTT.Password = "********"
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: configuration is not runnable: %v\n", err)
	}
	return nil
}
