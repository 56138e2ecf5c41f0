// Command authcore-server serves the authcore HTTP API.
//
// Configuration is read from the YAML file named by -config and overridden by
// AUTHCORE_* environment variables, for example AUTHCORE_AUTH_SIGNING_KEY or
// AUTHCORE_STORAGE_SESSIONS=redis.
package main

import (
	"context"
	"flag"
	"log"
)

func main() {
	configPath := flag.String("config", "configs/authcore.yaml", "path to the YAML config file")
	flag.Parse()

	ctx := context.Background()
	runtime, err := NewRuntime(ctx, *configPath)
	if err != nil {
		log.Fatalf("bootstrap authcore server: %v", err)
	}
	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("run authcore server: %v", err)
	}
}
