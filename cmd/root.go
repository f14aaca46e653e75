/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wwtp-microbiome",
	Short: "Microbial community analysis of wastewater treatment plants",
	Long: `A pipeline for profiling microbial communities in wastewater treatment
plants from public amplicon sequencing runs:
1.	download:   fetch paired FASTQ runs from the ENA FTP mirror
2.	qc:         FastQC quality reports
3.	assemble:   merge read pairs into contigs (mothur make.contigs)
4.	extract:    isolate rRNA reads (SortMeRNA)
5.	classify:   search rRNA reads against PR2 and SILVA (blastn)
6.	cleanblast: convert BLAST output into per-sample classification tables
7.	merge:      build the unified genus-level count table
8.	diversity, ordination, permanova, composition: downstream analyses
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file ")
}
