package blast

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mgram/wwtp-microbiome/utils"
)

// outFmt is the tabular BLAST output consumed by the cleaner. stitle carries
// the reference sequence's semicolon-delimited taxonomy string.
const outFmt = "6 qseqid sseqid pident length evalue bitscore stitle"

// RunBlastn searches one sample's rRNA reads against a reference database.
// Best-hit only: downstream counting assumes at most one line per read wins,
// and the cleaner keeps the first line per query as a belt-and-braces dedup.
func RunBlastn(queryFasta string, db string, outFile string, threads int) error {
	cmdStr := fmt.Sprintf(`blastn -query %s -db %s -outfmt '%s' -max_target_seqs 1 -evalue 1e-5 -num_threads %d -out %s`,
		queryFasta, db, outFmt, threads, outFile)
	fmt.Println(cmdStr)
	if err := utils.RunBashCmdVerbose(cmdStr); err != nil {
		return fmt.Errorf("blastn against %s failed: %w", db, err)
	}
	return nil
}

// ClassifySample runs one sample against both reference databases, writing
// <sample>_pr2.blast and <sample>_silva.blast into outputDir.
func ClassifySample(queryFasta string, pr2Db string, silvaDb string, outputDir string, sample string, threads int) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	pr2Out := filepath.Join(outputDir, sample+"_pr2.blast")
	if err := RunBlastn(queryFasta, pr2Db, pr2Out, threads); err != nil {
		return err
	}

	silvaOut := filepath.Join(outputDir, sample+"_silva.blast")
	if err := RunBlastn(queryFasta, silvaDb, silvaOut, threads); err != nil {
		return err
	}
	return nil
}
