package reads

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mgram/wwtp-microbiome/utils"
)

const enaFastqBase = "ftp.sra.ebi.ac.uk/vol1/fastq"

// enaFastqURLs builds the paired FASTQ download URLs for one run accession,
// following the ENA directory layout (a zero-padded subdirectory derived
// from the accession's trailing digits for accessions longer than 9 chars).
func enaFastqURLs(accession string) []string {
	dir := fmt.Sprintf("%s/%s", enaFastqBase, accession[:6])
	switch len(accession) {
	case 9:
		// no subdirectory
	case 10:
		dir = fmt.Sprintf("%s/00%s", dir, accession[9:])
	case 11:
		dir = fmt.Sprintf("%s/0%s", dir, accession[9:])
	default:
		dir = fmt.Sprintf("%s/%s", dir, accession[9:])
	}
	return []string{
		fmt.Sprintf("%s/%s/%s_1.fastq.gz", dir, accession, accession),
		fmt.Sprintf("%s/%s/%s_2.fastq.gz", dir, accession, accession),
	}
}

// DownloadReads fetches the paired FASTQ files for every accession from the
// ENA FTP mirror, up to maxParallel accessions at a time. Accessions already
// marked COMPLETED in the stage log are skipped on rerun.
func DownloadReads(accessions []string, outputDir string, maxParallel int, logger *slog.Logger, logPath string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	logEntries := utils.ParseLogFile(logPath)

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxParallel)
	for _, accession := range accessions {
		if utils.StageHasCompleted(logEntries, "download", accession) {
			fmt.Printf("Skipping %s (already downloaded)\n", accession)
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(accession string) {
			defer wg.Done()
			defer func() { <-sem }()

			logger.Info("READ DOWNLOAD", "STAGE", "download", "SAMPLE", accession, "STATUS", "STARTED")
			for _, url := range enaFastqURLs(accession) {
				cmdStr := fmt.Sprintf(`wget -nv -c -P %s %s`, outputDir, url)
				fmt.Println(cmdStr)
				if err := utils.RunBashCmdVerbose(cmdStr); err != nil {
					logger.Error("READ DOWNLOAD", "STAGE", "download", "SAMPLE", accession, "STATUS", "FAILED", "error", err)
					return
				}
			}
			logger.Info("READ DOWNLOAD", "STAGE", "download", "SAMPLE", accession, "STATUS", "COMPLETED")
		}(accession)
	}
	wg.Wait()

	return nil
}

// PairedFiles returns the expected on-disk paths of one accession's pair.
func PairedFiles(outputDir string, accession string) (string, string) {
	return filepath.Join(outputDir, accession+"_1.fastq.gz"),
		filepath.Join(outputDir, accession+"_2.fastq.gz")
}
