// Package config handles loading and validating lockbot configuration.
//
// This package manages:
//   - Loading configuration from YAML files (optional for env-only deployments)
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The bot token and bridge token have no defaults; startup fails without them
//   - Sensitive values should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.BridgeBaseURL())
package config
