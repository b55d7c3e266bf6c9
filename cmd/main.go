package main

import (
	"log"

	"virtual-patient-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
