/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package cmd

import (
	"fmt"
	"log"

	"github.com/mgram/wwtp-microbiome/community"
	"github.com/mgram/wwtp-microbiome/taxonomy"

	"github.com/spf13/cobra"
)

// permanovaCmd represents the permanova command
var permanovaCmd = &cobra.Command{
	Use:   "permanova -m <merged tsv>",
	Short: "Tests whether community composition differs between plants",
	Long: `permanova runs a one-way PERMANOVA on the Bray-Curtis dissimilarities,
grouping samples by treatment plant. Samples without a metadata match carry
no plant label and are excluded from the test. Significance comes from
permuting the plant labels.`,
	Run: func(cmd *cobra.Command, args []string) {

		mergedFile, mErr := cmd.Flags().GetString("merged")
		if mErr != nil {
			log.Fatalf("Error getting merged flag: %v", mErr)
		}

		permutations, pErr := cmd.Flags().GetInt("permutations")
		if pErr != nil {
			log.Fatalf("Error getting permutations flag: %v", pErr)
		}

		seed, sErr := cmd.Flags().GetUint64("seed")
		if sErr != nil {
			log.Fatalf("Error getting seed flag: %v", sErr)
		}

		if mergedFile == "" {
			log.Fatal("Please provide the merged count table (-m)")
		}

		records, readErr := taxonomy.ReadMergedTable(mergedFile)
		if readErr != nil {
			log.Fatalf("Error reading merged table: %v", readErr)
		}

		var labelled []taxonomy.MergedRecord
		for _, rec := range records {
			if rec.Plant != "" {
				labelled = append(labelled, rec)
			}
		}
		if len(labelled) < len(records) {
			fmt.Printf("Excluding rows without a plant label (%d of %d rows kept)\n", len(labelled), len(records))
		}

		matrix := community.BuildCountMatrix(labelled)
		groups := make([]string, len(matrix.Samples))
		for i, sample := range matrix.Samples {
			groups[i] = matrix.Plants[sample]
		}

		d := community.BrayCurtis(matrix.Counts)
		result, permErr := community.Permanova(d, groups, permutations, seed)
		if permErr != nil {
			log.Fatalf("PERMANOVA failed: %v", permErr)
		}

		fmt.Printf("PERMANOVA on %d samples grouped by plant:\n", len(matrix.Samples))
		fmt.Printf("  pseudo-F      = %.4f\n", result.F)
		fmt.Printf("  R2            = %.4f\n", result.R2)
		fmt.Printf("  p             = %.4f\n", result.P)
		fmt.Printf("  permutations  = %d\n", result.Permutations)
	},
}

func init() {
	rootCmd.AddCommand(permanovaCmd)

	permanovaCmd.Flags().StringP("merged", "m", "", "path to the merged count table")
	permanovaCmd.Flags().Int("permutations", 999, "number of label permutations")
	permanovaCmd.Flags().Uint64("seed", 1, "random seed for the permutations")
}
