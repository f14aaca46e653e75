package reads

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mgram/wwtp-microbiome/utils"
)

// RunFastQC runs FastQC over every FASTQ file in inputDir and collects the
// reports in outputDir.
func RunFastQC(inputDir string, outputDir string, threads int, logger *slog.Logger) error {
	fastqs, err := filepath.Glob(filepath.Join(inputDir, "*.fastq.gz"))
	if err != nil {
		return err
	}
	plain, err := filepath.Glob(filepath.Join(inputDir, "*.fastq"))
	if err != nil {
		return err
	}
	fastqs = append(fastqs, plain...)
	if len(fastqs) == 0 {
		return fmt.Errorf("no FASTQ files found in %s", inputDir)
	}

	if mkErr := os.MkdirAll(outputDir, 0755); mkErr != nil {
		return mkErr
	}

	fmt.Printf("Running FastQC on %d files ...\n", len(fastqs))
	logger.Info("QUALITY CHECK", "STAGE", "fastqc", "SAMPLE", "ALL", "STATUS", "STARTED")

	cmdStr := fmt.Sprintf(`fastqc -o %s -t %d %s`, outputDir, threads, strings.Join(fastqs, " "))
	fmt.Println(cmdStr)
	if err := utils.RunBashCmdVerbose(cmdStr); err != nil {
		logger.Error("QUALITY CHECK", "STAGE", "fastqc", "SAMPLE", "ALL", "STATUS", "FAILED", "error", err)
		return err
	}

	logger.Info("QUALITY CHECK", "STAGE", "fastqc", "SAMPLE", "ALL", "STATUS", "COMPLETED")
	return nil
}
