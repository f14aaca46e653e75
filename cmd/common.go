/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mgram/wwtp-microbiome/utils"
)

// loadConfig reads the persistent --config file when one was given.
func loadConfig() (utils.Config, error) {
	if cfgFile == "" {
		return utils.Config{}, nil
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return utils.Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return utils.ReadConfig(cfgFile)
}

// resolveAccessions prefers accessions given on the command line, falling
// back to the config file.
func resolveAccessions(flagAccessions []string, cfg utils.Config) []string {
	if len(flagAccessions) > 0 {
		return flagAccessions
	}
	return cfg.Accessions
}

// resolveThreads prefers the command line value, then the config file.
func resolveThreads(flagThreads int, cfg utils.Config) int {
	if flagThreads > 0 {
		return flagThreads
	}
	if cfg.Threads != "" {
		if n, err := strconv.Atoi(cfg.Threads); err == nil && n > 0 {
			return n
		}
	}
	return 4
}

// ensureOutputDir creates the output directory if it does not exist yet.
func ensureOutputDir(outputDir string) error {
	outInfo, outErr := os.Stat(outputDir)
	if outErr != nil {
		if os.IsNotExist(outErr) {
			fmt.Printf("Output directory: %s does not exist. Attempting to create it.\n", outputDir)
			if createErr := os.MkdirAll(outputDir, 0755); createErr != nil {
				return fmt.Errorf("failed to create output directory %s: %w", outputDir, createErr)
			}
			return nil
		}
		return fmt.Errorf("error accessing output directory %s: %w", outputDir, outErr)
	}
	if !outInfo.IsDir() {
		return fmt.Errorf("output directory %s file path is not a directory", outputDir)
	}
	return nil
}
