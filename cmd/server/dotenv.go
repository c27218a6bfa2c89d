package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnv loads .env and then .env.local when they exist. Variables that
// are already set in the environment are never overridden.
func loadDotEnv() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s file: %v\n", name, err)
		}
	}
}
