package main

import (
	"context"
	"log"
	"os"

	"camrec/internal/config"
	"camrec/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("CAMREC_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("camrecd: %v", err)
	}
}
