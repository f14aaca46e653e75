/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/mgram/wwtp-microbiome/community"
	"github.com/mgram/wwtp-microbiome/taxonomy"

	"github.com/spf13/cobra"
)

// ordinationCmd represents the ordination command
var ordinationCmd = &cobra.Command{
	Use:   "ordination -m <merged tsv> -o <coords tsv>",
	Short: "PCoA ordination of Bray-Curtis dissimilarities",
	Long: `ordination builds the sample × genus count matrix from the merged table,
computes pairwise Bray-Curtis dissimilarities and runs a principal
coordinates analysis. Sample coordinates go to a report table and a scatter
chart colored by treatment plant.`,
	Run: func(cmd *cobra.Command, args []string) {

		mergedFile, mErr := cmd.Flags().GetString("merged")
		if mErr != nil {
			log.Fatalf("Error getting merged flag: %v", mErr)
		}

		outputFile, outErr := cmd.Flags().GetString("out")
		if outErr != nil {
			log.Fatalf("Error getting out flag: %v", outErr)
		}

		htmlFile, hErr := cmd.Flags().GetString("html")
		if hErr != nil {
			log.Fatalf("Error getting html flag: %v", hErr)
		}

		axes, aErr := cmd.Flags().GetInt("axes")
		if aErr != nil {
			log.Fatalf("Error getting axes flag: %v", aErr)
		}

		if mergedFile == "" {
			log.Fatal("Please provide the merged count table (-m)")
		}
		if outputFile == "" {
			outputFile = strings.TrimSuffix(mergedFile, ".tsv") + "_pcoa.tsv"
		}
		if htmlFile == "" {
			htmlFile = strings.TrimSuffix(outputFile, ".tsv") + ".html"
		}
		if axes < 2 {
			axes = 2
		}

		records, readErr := taxonomy.ReadMergedTable(mergedFile)
		if readErr != nil {
			log.Fatalf("Error reading merged table: %v", readErr)
		}

		matrix := community.BuildCountMatrix(records)
		fmt.Printf("Count matrix: %d samples × %d genera\n", len(matrix.Samples), len(matrix.Genera))

		d := community.BrayCurtis(matrix.Counts)
		coords, explained, pcoaErr := community.PCoA(d, axes)
		if pcoaErr != nil {
			log.Fatalf("PCoA failed: %v", pcoaErr)
		}
		for j, e := range explained {
			fmt.Printf("PCo%d explains %.1f%% of the variation\n", j+1, e*100)
		}

		if wErr := community.WriteOrdinationTable(matrix.Samples, matrix.Plants, coords, outputFile); wErr != nil {
			log.Fatalf("Error writing ordination table: %v", wErr)
		}
		fmt.Printf("Wrote sample coordinates to %s\n", outputFile)

		if pErr := community.PlotOrdination(matrix.Samples, matrix.Plants, coords, explained, htmlFile); pErr != nil {
			log.Fatalf("Error rendering ordination chart: %v", pErr)
		}
		fmt.Printf("Wrote ordination chart to %s\n", htmlFile)
	},
}

func init() {
	rootCmd.AddCommand(ordinationCmd)

	ordinationCmd.Flags().StringP("merged", "m", "", "path to the merged count table")
	ordinationCmd.Flags().StringP("out", "o", "", "output path for the sample coordinates")
	ordinationCmd.Flags().String("html", "", "output path for the HTML chart page")
	ordinationCmd.Flags().Int("axes", 2, "number of principal coordinate axes to keep")
}
