package utils

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type Config struct {
	Accessions   []string
	MetadataFile string
	OutputDir    string
	InputDir     string

	PR2Db    string
	SilvaDb  string
	RRNARefs []string

	Threads string

	MinAbundance string
}

func ReadConfig(configPath string) (Config, error) {
	configFile, err := os.Open(configPath)
	if err != nil {
		return Config{}, err
	}
	defer configFile.Close()
	var cfg Config

	scanner := bufio.NewScanner(configFile)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "Accession":
			cfg.Accessions = append(cfg.Accessions, value)
		case "Metadata":
			cfg.MetadataFile = value
		case "OutputDir":
			cfg.OutputDir = value
		case "InputDir":
			cfg.InputDir = value
		case "pr2_db":
			cfg.PR2Db = value
		case "silva_db":
			cfg.SilvaDb = value
		case "rrna_ref":
			cfg.RRNARefs = append(cfg.RRNARefs, value)
		case "threads":
			cfg.Threads = value
		case "min_abundance":
			cfg.MinAbundance = value
		}
	}

	if err := scanner.Err(); err != nil {
		return cfg, err
	}

	return cfg, nil

}

func RunBashCmdVerbose(cmdStr string) error {
	cmd := exec.Command("bash", "-c", cmdStr)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		return err
	}
	return nil
}

// CheckDeps verifies that the named external tools are on PATH. With no
// arguments it checks the full set used across the pipeline stages.
func CheckDeps(tools ...string) error {
	if len(tools) == 0 {
		tools = []string{"wget", "fastqc", "mothur", "sortmerna", "blastn"}
	}
	var missing []string
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
	}
	return nil
}
