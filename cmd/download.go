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

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download -A <run accession> [-A <run accession> ...] -o <output dir>",
	Short: "Downloads paired FASTQ runs from the ENA FTP mirror",
	Long: `download fetches the paired FASTQ files of each run accession from the
ENA FTP mirror with wget. Accessions come from repeated -A flags or from the
config file (Accession: lines). Runs already marked COMPLETED in the stage
log are skipped, so an interrupted download can be rerun.`,
	Run: func(cmd *cobra.Command, args []string) {

		fmt.Printf("Checking dependencies ...\n\n")

		if err := utils.CheckDeps("wget"); err != nil {
			log.Fatalf("Dependency check failed: %v", err)
		}

		fmt.Printf("Dependencies OK\n\n----------------------------------------------------------\n\n")

		accessions, accErr := cmd.Flags().GetStringSlice("accession")
		if accErr != nil {
			log.Fatalf("Error getting accession flag: %v", accErr)
		}

		outputDir, outErr := cmd.Flags().GetString("out")
		if outErr != nil {
			log.Fatalf("Error getting out flag: %v", outErr)
		}

		parallel, parErr := cmd.Flags().GetInt("parallel")
		if parErr != nil {
			log.Fatalf("Error getting parallel flag: %v", parErr)
		}

		cfg, cfgErr := loadConfig()
		if cfgErr != nil {
			log.Fatalf("Error reading config file: %v", cfgErr)
		}

		accessions = resolveAccessions(accessions, cfg)
		if len(accessions) == 0 {
			log.Fatal("No run accessions given. Use -A or an Accession: line in the config file")
		}
		if outputDir == "" && cfg.OutputDir != "" {
			outputDir = cfg.OutputDir
		}
		if outputDir == "" {
			log.Fatal("Please provide an output directory (-o)")
		}

		if err := ensureOutputDir(outputDir); err != nil {
			log.Fatalf("%v", err)
		}

		logPath := filepath.Join(outputDir, "download.log.json")
		logger, logFile, logErr := utils.NewRunLogger(logPath)
		if logErr != nil {
			log.Fatalf("Error opening stage log: %v", logErr)
		}
		defer logFile.Close()

		fmt.Printf("Downloading %d runs (%d in parallel) ...\n", len(accessions), parallel)
		if err := reads.DownloadReads(accessions, outputDir, parallel, logger, logPath); err != nil {
			log.Fatalf("Download failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringSliceP("accession", "A", nil, "run accession to download (repeatable)")
	downloadCmd.Flags().StringP("out", "o", "", "output directory for FASTQ files")
	downloadCmd.Flags().IntP("parallel", "p", 3, "number of runs to download in parallel")
}
