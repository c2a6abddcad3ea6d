// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Command gen-schema writes the seed fixtures JSON Schema so editors can
// validate seed files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lfa-academy/lfa-server/internal/seed"
)

func main() {
	outPath := filepath.Join("schemas", "seeds.schema.json")
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := write(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", outPath)
}

func write(outPath string) error {
	schema, err := seed.Schema()
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
