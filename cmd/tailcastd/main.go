// Command tailcastd runs the tailcast daemon in the foreground using the
// default configuration lookup. It is equivalent to `tailcast serve`.
package main

import (
	"context"
	"flag"
	"log"

	"tailcast/internal/config"
	"tailcast/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override logging.level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("tailcastd: %v", err)
	}
}
