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

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract -i <assembled dir> -o <output dir> -R <rRNA reference fasta> [-A <run accession> ...]",
	Short: "Isolates rRNA reads with SortMeRNA",
	Long: `extract runs SortMeRNA on each run's assembled reads against the given
rRNA reference databases (repeat -R for several references, or rrna_ref:
lines in the config file). Aligned reads are written as FASTA, one directory
per run, ready for BLAST classification.`,
	Run: func(cmd *cobra.Command, args []string) {

		fmt.Printf("Checking dependencies ...\n\n")

		if err := utils.CheckDeps("sortmerna"); err != nil {
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

		rrnaRefs, refErr := cmd.Flags().GetStringSlice("ref")
		if refErr != nil {
			log.Fatalf("Error getting ref flag: %v", refErr)
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
		if inputDir == "" {
			log.Fatal("Please provide the assembled reads directory (-i)")
		}
		if outputDir == "" {
			log.Fatal("Please provide an output directory (-o)")
		}
		if len(rrnaRefs) == 0 {
			rrnaRefs = cfg.RRNARefs
		}
		if len(rrnaRefs) == 0 {
			log.Fatal("No rRNA reference given. Use -R or rrna_ref: lines in the config file")
		}
		threads = resolveThreads(threads, cfg)

		if err := ensureOutputDir(outputDir); err != nil {
			log.Fatalf("%v", err)
		}

		logPath := filepath.Join(outputDir, "extract.log.json")
		logger, logFile, logErr := utils.NewRunLogger(logPath)
		if logErr != nil {
			log.Fatalf("Error opening stage log: %v", logErr)
		}
		defer logFile.Close()

		logEntries := utils.ParseLogFile(logPath)
		for _, accession := range accessions {
			if utils.StageHasCompleted(logEntries, "sortmerna", accession) {
				fmt.Printf("Skipping %s (already extracted)\n", accession)
				continue
			}
			assembled := filepath.Join(inputDir, accession, accession+"_1.trim.contigs.fastq")
			if _, err := reads.ExtractRRNA(assembled, rrnaRefs, accession, outputDir, threads, logger); err != nil {
				log.Fatalf("rRNA extraction failed for %s: %v", accession, err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringSliceP("accession", "A", nil, "run accession to process (repeatable)")
	extractCmd.Flags().StringP("in", "i", "", "directory with assembled reads (one subdirectory per run)")
	extractCmd.Flags().StringP("out", "o", "", "output directory for extracted rRNA reads")
	extractCmd.Flags().StringSliceP("ref", "R", nil, "rRNA reference fasta (repeatable)")
	extractCmd.Flags().IntP("threads", "t", 0, "number of SortMeRNA threads")
}
