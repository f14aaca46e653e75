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

// assembleCmd represents the assemble command
var assembleCmd = &cobra.Command{
	Use:   "assemble -i <fastq dir> -o <output dir> [-A <run accession> ...]",
	Short: "Merges read pairs into contigs with mothur",
	Long: `assemble runs mothur make.contigs on each run's read pair and then
recovers the forward reads of pairs that failed to merge, appending them to
the assembled set so their taxonomic signal is not lost. Runs already marked
COMPLETED in the stage log are skipped.`,
	Run: func(cmd *cobra.Command, args []string) {

		fmt.Printf("Checking dependencies ...\n\n")

		if err := utils.CheckDeps("mothur"); err != nil {
			log.Fatalf("Dependency check failed: %v", err)
		}

		fmt.Printf("Dependencies OK\n\n----------------------------------------------------------\n\n")

		accessions, accErr := cmd.Flags().GetStringSlice("accession")
		if accErr != nil {
			log.Fatalf("Error getting accession flag: %v", accErr)
		}

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

		accessions = resolveAccessions(accessions, cfg)
		if len(accessions) == 0 {
			log.Fatal("No run accessions given. Use -A or an Accession: line in the config file")
		}
		if inputDir == "" && cfg.InputDir != "" {
			inputDir = cfg.InputDir
		}
		if inputDir == "" {
			log.Fatal("Please provide an input directory (-i)")
		}
		if outputDir == "" && cfg.OutputDir != "" {
			outputDir = cfg.OutputDir
		}
		if outputDir == "" {
			log.Fatal("Please provide an output directory (-o)")
		}
		threads = resolveThreads(threads, cfg)

		if err := ensureOutputDir(outputDir); err != nil {
			log.Fatalf("%v", err)
		}

		logPath := filepath.Join(outputDir, "assemble.log.json")
		logger, logFile, logErr := utils.NewRunLogger(logPath)
		if logErr != nil {
			log.Fatalf("Error opening stage log: %v", logErr)
		}
		defer logFile.Close()

		logEntries := utils.ParseLogFile(logPath)
		for _, accession := range accessions {
			if utils.StageHasCompleted(logEntries, "make.contigs", accession) {
				fmt.Printf("Skipping %s (already assembled)\n", accession)
				continue
			}
			fwd, rev := reads.PairedFiles(inputDir, accession)
			if err := reads.AssembleContigs(fwd, rev, accession, outputDir, threads, logger); err != nil {
				log.Fatalf("Assembly failed for %s: %v", accession, err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().StringSliceP("accession", "A", nil, "run accession to assemble (repeatable)")
	assembleCmd.Flags().StringP("in", "i", "", "directory with paired FASTQ files")
	assembleCmd.Flags().StringP("out", "o", "", "output directory for assembled reads")
	assembleCmd.Flags().IntP("threads", "t", 0, "number of mothur processors")
}
