// Package config handles loading and validating environment monitor configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with ENVMON_* environment variables
//   - Validation of required fields (all errors reported at once)
//   - Watching the file for changes (log level hot reload)
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Store.Backend)
package config
