// Package config handles loading and validating the UTS core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The components section declares what the manager adds at startup:
//
//	components:
//	  - location: "driver:Ticker/clock"
//	    options:
//	      interval: "1s"
//	  - location: "instrument:SimCamera/cam1"
//	    init: false
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Manager.PoolWorkers)
package config
