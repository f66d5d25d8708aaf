package retrieval

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// sourcePatterns are the recognized export/log file shapes scanned by the
// keyword tier.
var sourcePatterns = []string{
	"history_*.csv",
	"event_history_*.csv",
	"was_event_*.csv",
	"db_event_*.csv",
	"history_*.txt",
	"event_history_*.txt",
}

// maxFilesPerPattern bounds the scan window to the most recent files.
const maxFilesPerPattern = 7

// KeywordRanker is the fallback retrieval tier: a bounded line-by-line scan
// of recent source files scored by distinct matching question tokens. It
// never fails; unreadable candidates are skipped.
type KeywordRanker struct {
	Dir string
}

func NewKeywordRanker(dir string) *KeywordRanker { return &KeywordRanker{Dir: dir} }

// Tokenize splits a question on whitespace and punctuation and drops tokens
// shorter than two characters.
func Tokenize(question string) []string {
	raw := strings.FieldsFunc(question, func(r rune) bool {
		switch r {
		case ',', '.', ';', ':', '!', '?', '(', ')', '[', ']', '{', '}', '-', '_', '/':
			return true
		}
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len([]rune(t)) >= 2 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Rank scores every candidate line by the number of distinct tokens it
// contains (case-insensitive), drops zero scores and returns the top k.
func (r *KeywordRanker) Rank(question string, topK int) []Result {
	tokens := Tokenize(question)
	if len(tokens) == 0 {
		return nil
	}

	var ranked []Result
	for _, line := range r.candidateLines() {
		score := keywordScore(line, tokens)
		if score == 0 {
			continue
		}
		ranked = append(ranked, Result{Source: "mock", Content: line, Score: float64(score)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// candidateLines collects non-empty lines from the most recently modified
// files matching each recognized pattern.
func (r *KeywordRanker) candidateLines() []string {
	var lines []string
	for _, pattern := range sourcePatterns {
		matches, err := filepath.Glob(filepath.Join(r.Dir, pattern))
		if err != nil {
			continue
		}
		sort.Slice(matches, func(i, j int) bool { return modTime(matches[i]).After(modTime(matches[j])) })
		if len(matches) > maxFilesPerPattern {
			matches = matches[:maxFilesPerPattern]
		}
		for _, path := range matches {
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			scanner := bufio.NewScanner(f)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line != "" {
					lines = append(lines, line)
				}
			}
			_ = f.Close()
		}
	}
	return lines
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func keywordScore(line string, tokens []string) int {
	lower := strings.ToLower(line)
	score := 0
	for _, t := range tokens {
		if strings.Contains(lower, strings.ToLower(t)) {
			score++
		}
	}
	return score
}
