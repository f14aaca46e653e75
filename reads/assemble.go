package reads

import (
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fastq"
	"github.com/biogo/biogo/seq/linear"

	"github.com/mgram/wwtp-microbiome/utils"
)

// AssembleContigs merges one sample's read pair into contigs with Mothur's
// make.contigs and then recovers the forward reads of pairs that failed to
// merge, appending them to the assembled set. Unmerged reads still carry
// usable taxonomic signal, so dropping them would bias abundance downward.
func AssembleContigs(fwd string, rev string, sample string, outputDir string, threads int, logger *slog.Logger) error {
	sampleDir := filepath.Join(outputDir, sample)
	if err := os.MkdirAll(sampleDir, 0755); err != nil {
		return err
	}

	logger.Info("CONTIG ASSEMBLY", "STAGE", "make.contigs", "SAMPLE", sample, "STATUS", "STARTED")
	cmdStr := fmt.Sprintf(`mothur "#set.dir(output=%s); make.contigs(ffastq=%s, rfastq=%s, processors=%d)"`,
		sampleDir, fwd, rev, threads)
	fmt.Println(cmdStr)
	if err := utils.RunBashCmdVerbose(cmdStr); err != nil {
		logger.Error("CONTIG ASSEMBLY", "STAGE", "make.contigs", "SAMPLE", sample, "STATUS", "FAILED", "error", err)
		return err
	}

	base := strings.TrimSuffix(filepath.Base(fwd), ".fastq.gz")
	base = strings.TrimSuffix(base, ".fastq")
	trimFastq := filepath.Join(sampleDir, base+".trim.contigs.fastq")
	scrapFastq := filepath.Join(sampleDir, base+".scrap.contigs.fastq")

	recovered, err := RecoverUnmergedForward(scrapFastq, fwd, trimFastq)
	if err != nil {
		logger.Error("CONTIG ASSEMBLY", "STAGE", "recover_unmerged", "SAMPLE", sample, "STATUS", "FAILED", "error", err)
		return err
	}
	fmt.Printf("Recovered %d unmerged forward reads for %s\n", recovered, sample)
	logger.Info("CONTIG ASSEMBLY", "STAGE", "make.contigs", "SAMPLE", sample, "RECOVERED", recovered, "STATUS", "COMPLETED")
	return nil
}

func openFastq(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gz, gzErr := gzip.NewReader(f)
		if gzErr != nil {
			f.Close()
			return nil, gzErr
		}
		return struct {
			io.Reader
			io.Closer
		}{gz, f}, nil
	}
	return f, nil
}

// ScanReadIDs collects the read identifiers present in a FASTQ file.
func ScanReadIDs(path string) (map[string]bool, error) {
	r, err := openFastq(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	ids := make(map[string]bool)
	sc := seqio.NewScanner(fastq.NewReader(r, linear.NewQSeq("", nil, alphabet.DNAgapped, alphabet.Sanger)))
	for sc.Next() {
		ids[sc.Seq().Name()] = true
	}
	if err := sc.Error(); err != nil {
		return nil, err
	}
	return ids, nil
}

// RecoverUnmergedForward reads the assembler's scrap file to learn which
// pairs failed to merge, then appends those pairs' forward reads from the
// original FASTQ to the assembled output. Returns the number recovered.
// A missing scrap file means every pair merged; that is not an error.
func RecoverUnmergedForward(scrapFastq string, fwdFastq string, outFastq string) (int, error) {
	if _, err := os.Stat(scrapFastq); os.IsNotExist(err) {
		return 0, nil
	}

	scrapIDs, err := ScanReadIDs(scrapFastq)
	if err != nil {
		return 0, err
	}
	if len(scrapIDs) == 0 {
		return 0, nil
	}

	src, err := openFastq(fwdFastq)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	out, err := os.OpenFile(outFastq, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	defer func(out *os.File) {
		if cErr := out.Close(); cErr != nil {
			panic(cErr)
		}
	}(out)

	writer := fastq.NewWriter(out)
	recovered := 0
	sc := seqio.NewScanner(fastq.NewReader(src, linear.NewQSeq("", nil, alphabet.DNAgapped, alphabet.Sanger)))
	for sc.Next() {
		s := sc.Seq().(*linear.QSeq)
		if !scrapIDs[s.Name()] {
			continue
		}
		if _, wErr := writer.Write(s); wErr != nil {
			return recovered, wErr
		}
		recovered++
	}
	if err := sc.Error(); err != nil {
		return recovered, err
	}
	return recovered, nil
}
