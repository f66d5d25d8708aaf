package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LogSource reads flat middleware/database log files partitioned by date:
// {baseDir}/{prefix}_{YYYYMMDD}, one record per line.
type LogSource struct {
	name    string
	baseDir string
	prefix  string
}

func NewLogSource(name, baseDir, prefix string) *LogSource {
	return &LogSource{name: name, baseDir: baseDir, prefix: prefix}
}

func (s *LogSource) Name() string { return s.name }

func (s *LogSource) Collect(ctx context.Context, date string) ([]Row, error) {
	lines := ReadPartition(s.baseDir, s.prefix, date)
	rows := make([]Row, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, Row{Line: line})
	}
	return rows, nil
}

// ReadPartition returns the trimmed non-empty lines of one daily log file, or
// nil when the partition does not exist or cannot be read.
func ReadPartition(baseDir, prefix, date string) []string {
	path := filepath.Join(baseDir, fmt.Sprintf("%s_%s", prefix, date))
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
