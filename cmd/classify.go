/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package cmd

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/mgram/wwtp-microbiome/blast"
	"github.com/mgram/wwtp-microbiome/utils"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify -i <rRNA dir> -o <output dir> --pr2_db <db> --silva_db <db> [-A <run accession> ...]",
	Short: "Searches rRNA reads against the PR2 and SILVA databases",
	Long: `classify runs blastn (best hit only) on each run's extracted rRNA reads
against both reference databases, PR2 for eukaryotes and SILVA for
prokaryotes, writing <run>_pr2.blast and <run>_silva.blast per run. Runs are
classified in parallel; already COMPLETED runs are skipped on rerun.`,
	Run: func(cmd *cobra.Command, args []string) {

		fmt.Printf("Checking dependencies ...\n\n")

		if err := utils.CheckDeps("blastn"); err != nil {
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

		pr2Db, pr2Err := cmd.Flags().GetString("pr2_db")
		if pr2Err != nil {
			log.Fatalf("Error getting pr2_db flag: %v", pr2Err)
		}

		silvaDb, silvaErr := cmd.Flags().GetString("silva_db")
		if silvaErr != nil {
			log.Fatalf("Error getting silva_db flag: %v", silvaErr)
		}

		parallel, parErr := cmd.Flags().GetInt("parallel")
		if parErr != nil {
			log.Fatalf("Error getting parallel flag: %v", parErr)
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
			log.Fatal("Please provide the extracted rRNA directory (-i)")
		}
		if outputDir == "" {
			log.Fatal("Please provide an output directory (-o)")
		}
		if pr2Db == "" {
			pr2Db = cfg.PR2Db
		}
		if silvaDb == "" {
			silvaDb = cfg.SilvaDb
		}
		if pr2Db == "" || silvaDb == "" {
			log.Fatal("Please provide both reference databases (--pr2_db and --silva_db)")
		}
		threads = resolveThreads(threads, cfg)
		if parallel < 1 {
			parallel = 1
		}

		if err := ensureOutputDir(outputDir); err != nil {
			log.Fatalf("%v", err)
		}

		logPath := filepath.Join(outputDir, "classify.log.json")
		logger, logFile, logErr := utils.NewRunLogger(logPath)
		if logErr != nil {
			log.Fatalf("Error opening stage log: %v", logErr)
		}
		defer logFile.Close()

		logEntries := utils.ParseLogFile(logPath)

		var g errgroup.Group
		g.SetLimit(parallel)
		for _, accession := range accessions {
			if utils.StageHasCompleted(logEntries, "blastn", accession) {
				fmt.Printf("Skipping %s (already classified)\n", accession)
				continue
			}
			accession := accession
			g.Go(func() error {
				query := filepath.Join(inputDir, accession, accession+"_rrna.fasta")
				logger.Info("BLAST CLASSIFICATION", "STAGE", "blastn", "SAMPLE", accession, "STATUS", "STARTED")
				if err := blast.ClassifySample(query, pr2Db, silvaDb, outputDir, accession, threads); err != nil {
					logger.Error("BLAST CLASSIFICATION", "STAGE", "blastn", "SAMPLE", accession, "STATUS", "FAILED", "error", err)
					return fmt.Errorf("classifying %s: %w", accession, err)
				}
				logger.Info("BLAST CLASSIFICATION", "STAGE", "blastn", "SAMPLE", accession, "STATUS", "COMPLETED")
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			log.Fatalf("Classification failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringSliceP("accession", "A", nil, "run accession to classify (repeatable)")
	classifyCmd.Flags().StringP("in", "i", "", "directory with extracted rRNA reads (one subdirectory per run)")
	classifyCmd.Flags().StringP("out", "o", "", "output directory for BLAST results")
	classifyCmd.Flags().String("pr2_db", "", "path to the PR2 BLAST database")
	classifyCmd.Flags().String("silva_db", "", "path to the SILVA BLAST database")
	classifyCmd.Flags().IntP("parallel", "p", 2, "number of runs to classify in parallel")
	classifyCmd.Flags().IntP("threads", "t", 0, "number of blastn threads per run")
}
