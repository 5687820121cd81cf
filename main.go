package main

import (
	"log"

	"github.com/kilianp07/spotmarket/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("spotmarket: %v", err)
	}
}
