// Package config provides configuration parsing for minutespa hosts.
//
// The configuration is stored in minutespa.json (or minutespa.yaml) at the
// project root. This package handles loading, saving, and validating it.
//
// # Configuration File Structure
//
//	{
//	  "name": "todo",
//	  "state": {
//	    "storeId": "main",
//	    "medium": "sqlite",
//	    "timeout": "5s",
//	    "cacheSize": 256,
//	    "sqlite": { "path": "state.db" },
//	    "s3": { "bucket": "my-bucket", "prefix": "state/", "region": "us-east-1" },
//	    "remote": { "url": "http://localhost:3100" }
//	  },
//	  "server": {
//	    "host": "localhost",
//	    "port": 3100,
//	    "metrics": true
//	  },
//	  "log": { "level": "info", "format": "text" }
//	}
//
// The medium may be overridden with the MINUTESPA_MEDIUM environment
// variable.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Medium:", cfg.State.Medium)
package config
