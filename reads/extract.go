package reads

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"

	"github.com/mgram/wwtp-microbiome/utils"
)

// ExtractRRNA isolates the rRNA marker-gene reads from one sample's
// assembled reads with SortMeRNA. Aligned reads land in
// <outputDir>/<sample>/<sample>_rrna.fasta.
func ExtractRRNA(inputReads string, rrnaRefs []string, sample string, outputDir string, threads int, logger *slog.Logger) (string, error) {
	if len(rrnaRefs) == 0 {
		return "", fmt.Errorf("no rRNA reference files configured")
	}

	sampleDir := filepath.Join(outputDir, sample)
	if err := os.MkdirAll(sampleDir, 0755); err != nil {
		return "", err
	}

	var refArgs []string
	for _, ref := range rrnaRefs {
		refArgs = append(refArgs, "--ref "+ref)
	}
	alignedBase := filepath.Join(sampleDir, sample+"_rrna")

	logger.Info("RRNA EXTRACTION", "STAGE", "sortmerna", "SAMPLE", sample, "STATUS", "STARTED")
	cmdStr := fmt.Sprintf(`sortmerna %s --reads %s --workdir %s --aligned %s --fastx --threads %d`,
		strings.Join(refArgs, " "), inputReads, sampleDir, alignedBase, threads)
	fmt.Println(cmdStr)
	if err := utils.RunBashCmdVerbose(cmdStr); err != nil {
		logger.Error("RRNA EXTRACTION", "STAGE", "sortmerna", "SAMPLE", sample, "STATUS", "FAILED", "error", err)
		return "", err
	}

	alignedFasta := alignedBase + ".fasta"
	n, cErr := CountFastaReads(alignedFasta)
	if cErr != nil {
		fmt.Printf("Could not count extracted reads for %s: %v\n", sample, cErr)
	} else {
		fmt.Printf("Extracted %d rRNA reads for %s\n", n, sample)
	}
	logger.Info("RRNA EXTRACTION", "STAGE", "sortmerna", "SAMPLE", sample, "READS", n, "STATUS", "COMPLETED")
	return alignedFasta, nil
}

// CountFastaReads counts the sequences in a FASTA file.
func CountFastaReads(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := seqio.NewScanner(fasta.NewReader(f, linear.NewSeq("", nil, alphabet.DNAgapped)))
	for sc.Next() {
		n++
	}
	if err := sc.Error(); err != nil {
		return n, err
	}
	return n, nil
}
