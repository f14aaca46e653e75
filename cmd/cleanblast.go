/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package cmd

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/mgram/wwtp-microbiome/blast"

	"github.com/spf13/cobra"
)

// cleanblastCmd represents the cleanblast command
var cleanblastCmd = &cobra.Command{
	Use:   "cleanblast -i <blast dir> -o <output dir>",
	Short: "Converts BLAST output into per-sample classification tables",
	Long: `cleanblast turns every *_pr2.blast and *_silva.blast file in the input
directory into a tab-separated classification table with one best-hit row per
read and seven taxonomic ranks. PR2 taxonomy strings have their Supergroup
rank dropped; truncated taxonomy paths are padded with unclassified_<rank>
placeholders.`,
	Run: func(cmd *cobra.Command, args []string) {

		inputDir, inErr := cmd.Flags().GetString("in")
		if inErr != nil {
			log.Fatalf("Error getting in flag: %v", inErr)
		}

		outputDir, outErr := cmd.Flags().GetString("out")
		if outErr != nil {
			log.Fatalf("Error getting out flag: %v", outErr)
		}

		if inputDir == "" {
			log.Fatal("Please provide the BLAST results directory (-i)")
		}
		if outputDir == "" {
			outputDir = inputDir
		}
		if err := ensureOutputDir(outputDir); err != nil {
			log.Fatalf("%v", err)
		}

		formats := []struct {
			suffix string
			format string
		}{
			{"_pr2.blast", blast.FormatPR2},
			{"_silva.blast", blast.FormatSilva},
		}

		cleaned := 0
		for _, f := range formats {
			files, globErr := filepath.Glob(filepath.Join(inputDir, "*"+f.suffix))
			if globErr != nil {
				log.Fatalf("Error listing %s files: %v", f.format, globErr)
			}
			for _, blastFile := range files {
				sample := strings.TrimSuffix(filepath.Base(blastFile), f.suffix)
				outFile := filepath.Join(outputDir, fmt.Sprintf("%s_%s_classified.tsv", sample, f.format))
				n, cleanErr := blast.CleanOutput(blastFile, f.format, outFile)
				if cleanErr != nil {
					log.Fatalf("Cleaning %s failed: %v", blastFile, cleanErr)
				}
				fmt.Printf("%s: %d classified reads -> %s\n", filepath.Base(blastFile), n, outFile)
				cleaned++
			}
		}
		if cleaned == 0 {
			log.Fatalf("No *_pr2.blast or *_silva.blast files found in %s", inputDir)
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanblastCmd)

	cleanblastCmd.Flags().StringP("in", "i", "", "directory with BLAST result files")
	cleanblastCmd.Flags().StringP("out", "o", "", "output directory for classification tables (default: input directory)")
}
