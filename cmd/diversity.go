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

// diversityCmd represents the diversity command
var diversityCmd = &cobra.Command{
	Use:   "diversity -m <merged tsv> -o <report tsv>",
	Short: "Computes per-sample richness and Shannon diversity",
	Long: `diversity computes genus richness and the Shannon index for every sample
in the merged count table, fits the Shannon index against sample latitude,
and writes a per-sample report plus an HTML chart page.`,
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

		if mergedFile == "" {
			log.Fatal("Please provide the merged count table (-m)")
		}
		if outputFile == "" {
			outputFile = strings.TrimSuffix(mergedFile, ".tsv") + "_diversity.tsv"
		}
		if htmlFile == "" {
			htmlFile = strings.TrimSuffix(outputFile, ".tsv") + ".html"
		}

		records, readErr := taxonomy.ReadMergedTable(mergedFile)
		if readErr != nil {
			log.Fatalf("Error reading merged table: %v", readErr)
		}

		div := community.Diversity(records)
		fmt.Printf("Computed diversity for %d samples\n", len(div))

		if alpha, beta, ok := community.LatitudeTrend(div); ok {
			fmt.Printf("Latitude trend: Shannon = %.4f + %.4f * latitude\n", alpha, beta)
		} else {
			fmt.Println("Latitude trend: not enough samples with a usable latitude")
		}

		if wErr := community.WriteDiversityTable(div, outputFile); wErr != nil {
			log.Fatalf("Error writing diversity report: %v", wErr)
		}
		fmt.Printf("Wrote diversity report to %s\n", outputFile)

		if pErr := community.PlotDiversity(div, htmlFile); pErr != nil {
			log.Fatalf("Error rendering diversity charts: %v", pErr)
		}
		fmt.Printf("Wrote diversity charts to %s\n", htmlFile)
	},
}

func init() {
	rootCmd.AddCommand(diversityCmd)

	diversityCmd.Flags().StringP("merged", "m", "", "path to the merged count table")
	diversityCmd.Flags().StringP("out", "o", "", "output path for the diversity report")
	diversityCmd.Flags().String("html", "", "output path for the HTML chart page")
}
