/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/mgram/wwtp-microbiome/community"

	"github.com/spf13/cobra"
)

// compositionCmd represents the composition command
var compositionCmd = &cobra.Command{
	Use:   "composition -m <merged tsv> -o <report tsv>",
	Short: "Summarizes microbial community composition per plant",
	Long: `composition sums read counts per treatment plant and microbial community
(Bacteria, Archaea, Protists, Fungi, Metazoa) from the merged table, writes
the per-plant summary with relative abundances, and renders a stacked bar
chart.`,
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
			outputFile = strings.TrimSuffix(mergedFile, ".tsv") + "_composition.tsv"
		}
		if htmlFile == "" {
			htmlFile = strings.TrimSuffix(outputFile, ".tsv") + ".html"
		}

		summary, sumErr := community.CompositionSummary(mergedFile)
		if sumErr != nil {
			log.Fatalf("Error summarizing composition: %v", sumErr)
		}
		fmt.Printf("Summarized composition for %d plants\n", len(summary))

		if wErr := community.WriteCompositionTable(summary, outputFile); wErr != nil {
			log.Fatalf("Error writing composition report: %v", wErr)
		}
		fmt.Printf("Wrote composition report to %s\n", outputFile)

		if pErr := community.PlotComposition(summary, htmlFile); pErr != nil {
			log.Fatalf("Error rendering composition chart: %v", pErr)
		}
		fmt.Printf("Wrote composition chart to %s\n", htmlFile)
	},
}

func init() {
	rootCmd.AddCommand(compositionCmd)

	compositionCmd.Flags().StringP("merged", "m", "", "path to the merged count table")
	compositionCmd.Flags().StringP("out", "o", "", "output path for the composition report")
	compositionCmd.Flags().String("html", "", "output path for the HTML chart page")
}
