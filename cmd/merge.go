/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package cmd

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/mgram/wwtp-microbiome/taxonomy"
	"github.com/mgram/wwtp-microbiome/utils"

	"github.com/spf13/cobra"
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge -i <classified dir> -M <metadata tsv> -o <merged tsv>",
	Short: "Builds the unified genus-level count table",
	Long: `merge combines every per-sample PR2 and SILVA classification table into
one genus-level count table: reads are deduplicated per database, counted per
sample and taxonomic path, joined with the sample metadata, checked for read
count conservation, normalized (genus renames, domain cleanup), filtered by
abundance and annotated with superdomain, database and microbial community.

A read count mismatch is reported, not fatal. Missing input for either
database is fatal: a half-merged table would silently skip one superdomain.`,
	Run: func(cmd *cobra.Command, args []string) {

		inputDir, inErr := cmd.Flags().GetString("in")
		if inErr != nil {
			log.Fatalf("Error getting in flag: %v", inErr)
		}

		metadataFile, metaErr := cmd.Flags().GetString("metadata")
		if metaErr != nil {
			log.Fatalf("Error getting metadata flag: %v", metaErr)
		}

		outputFile, outErr := cmd.Flags().GetString("out")
		if outErr != nil {
			log.Fatalf("Error getting out flag: %v", outErr)
		}

		minReads, minErr := cmd.Flags().GetInt("min_reads")
		if minErr != nil {
			log.Fatalf("Error getting min_reads flag: %v", minErr)
		}

		cfg, cfgErr := loadConfig()
		if cfgErr != nil {
			log.Fatalf("Error reading config file: %v", cfgErr)
		}

		if inputDir == "" {
			log.Fatal("Please provide the classification tables directory (-i)")
		}
		if metadataFile == "" {
			metadataFile = cfg.MetadataFile
		}
		if metadataFile == "" {
			log.Fatal("Please provide the sample metadata table (-M)")
		}
		if outputFile == "" {
			outputFile = filepath.Join(inputDir, "merged_counts.tsv")
		}

		pr2Files, pr2Err := filepath.Glob(filepath.Join(inputDir, "*_pr2_classified.tsv"))
		if pr2Err != nil {
			log.Fatalf("Error listing PR2 tables: %v", pr2Err)
		}
		silvaFiles, silvaErr := filepath.Glob(filepath.Join(inputDir, "*_silva_classified.tsv"))
		if silvaErr != nil {
			log.Fatalf("Error listing SILVA tables: %v", silvaErr)
		}

		metadata, mErr := taxonomy.ReadSampleMetadata(metadataFile)
		if mErr != nil {
			log.Fatalf("Error reading sample metadata: %v", mErr)
		}
		fmt.Printf("Loaded metadata for %d samples\n", len(metadata))

		logPath := filepath.Join(filepath.Dir(outputFile), "merge.log.json")
		logger, logFile, logErr := utils.NewRunLogger(logPath)
		if logErr != nil {
			log.Fatalf("Error opening stage log: %v", logErr)
		}
		defer logFile.Close()

		merger := taxonomy.NewMerger(logger)
		if minReads >= 0 {
			merger.MinReads = minReads
		}

		result, runErr := merger.Run(pr2Files, silvaFiles, metadata)
		if runErr != nil {
			log.Fatalf("Merge failed: %v", runErr)
		}

		failed := 0
		for _, v := range result.Validations {
			if !v.Passed {
				failed++
			}
		}
		if failed > 0 {
			fmt.Printf("WARNING: read count conservation failed for %d of %d samples (see %s)\n",
				failed, len(result.Validations), logPath)
		} else {
			fmt.Printf("Read count conservation passed for all %d samples\n", len(result.Validations))
		}

		if wErr := taxonomy.WriteMergedTable(result.Records, outputFile); wErr != nil {
			log.Fatalf("Error writing merged table: %v", wErr)
		}
		fmt.Printf("Wrote %d rows to %s\n", len(result.Records), outputFile)
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringP("in", "i", "", "directory with *_pr2_classified.tsv and *_silva_classified.tsv tables")
	mergeCmd.Flags().StringP("metadata", "M", "", "sample metadata table (tab separated, keyed by run_accession)")
	mergeCmd.Flags().StringP("out", "o", "", "output path for the merged table (default <in>/merged_counts.tsv)")
	mergeCmd.Flags().Int("min_reads", taxonomy.DefaultMinReads, "abundance threshold: keep groups with more reads than this")
}
