/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package cmd

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/mgram/wwtp-microbiome/reads"
	"github.com/mgram/wwtp-microbiome/utils"

	"github.com/spf13/cobra"
)

// qcCmd represents the qc command
var qcCmd = &cobra.Command{
	Use:   "qc -i <fastq dir> -o <report dir>",
	Short: "Runs FastQC over downloaded FASTQ files",
	Long: `qc runs FastQC on every FASTQ file in the input directory and collects
the HTML reports in the output directory. The reports are inspected manually;
no read is filtered or trimmed here.`,
	Run: func(cmd *cobra.Command, args []string) {

		fmt.Printf("Checking dependencies ...\n\n")

		if err := utils.CheckDeps("fastqc"); err != nil {
			log.Fatalf("Dependency check failed: %v", err)
		}

		fmt.Printf("Dependencies OK\n\n----------------------------------------------------------\n\n")

		inputDir, inErr := cmd.Flags().GetString("in")
		if inErr != nil {
			log.Fatalf("Error getting in flag: %v", inErr)
		}

		outputDir, outErr := cmd.Flags().GetString("out")
		if outErr != nil {
			log.Fatalf("Error getting out flag: %v", outErr)
		}

		threads, tErr := cmd.Flags().GetInt("threads")
		if tErr != nil {
			log.Fatalf("Error getting threads flag: %v", tErr)
		}

		cfg, cfgErr := loadConfig()
		if cfgErr != nil {
			log.Fatalf("Error reading config file: %v", cfgErr)
		}
		if inputDir == "" && cfg.InputDir != "" {
			inputDir = cfg.InputDir
		}
		if inputDir == "" {
			log.Fatal("Please provide an input directory (-i)")
		}
		if outputDir == "" {
			outputDir = filepath.Join(inputDir, "fastqc")
		}
		threads = resolveThreads(threads, cfg)

		logPath := filepath.Join(outputDir, "qc.log.json")
		if err := ensureOutputDir(outputDir); err != nil {
			log.Fatalf("%v", err)
		}
		logger, logFile, logErr := utils.NewRunLogger(logPath)
		if logErr != nil {
			log.Fatalf("Error opening stage log: %v", logErr)
		}
		defer logFile.Close()

		if err := reads.RunFastQC(inputDir, outputDir, threads, logger); err != nil {
			log.Fatalf("FastQC failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(qcCmd)

	qcCmd.Flags().StringP("in", "i", "", "directory with FASTQ files")
	qcCmd.Flags().StringP("out", "o", "", "directory for FastQC reports (default <in>/fastqc)")
	qcCmd.Flags().IntP("threads", "t", 0, "number of FastQC threads")
}
