package utils

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// LogEntry is one line of a pipeline stage's JSON run log.
type LogEntry struct {
	Timestamp string `json:"time"`
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Stage     string `json:"STAGE"`
	Sample    string `json:"SAMPLE"`
	Status    string `json:"STATUS"`
	Cmd       string `json:"CMD"`
}

// NewRunLogger opens (appending) the stage log file and returns a JSON
// slog logger writing to it, plus the file handle for the caller to close.
func NewRunLogger(logFilePath string) (*slog.Logger, *os.File, error) {
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	return logger, logFile, nil
}

// ParseLogFile reads a JSON run log line by line. Lines that fail to parse
// are skipped, so a truncated last line from a killed run does not poison
// the whole log.
func ParseLogFile(logFilePath string) []LogEntry {
	var entries []LogEntry
	file, err := os.Open(logFilePath)
	if err != nil {
		return entries
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal([]byte(scanner.Text()), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

// StageHasCompleted reports whether the log already records a COMPLETED
// entry for the given stage and sample, so reruns can skip finished work.
func StageHasCompleted(entries []LogEntry, stage string, sample string) bool {
	for _, entry := range entries {
		if entry.Level == "INFO" && entry.Stage == stage && entry.Sample == sample &&
			strings.EqualFold(entry.Status, "COMPLETED") {
			return true
		}
	}
	return false
}
