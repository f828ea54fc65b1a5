// Package results persists match run output and exports matched images.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kozaktomas/face-finder/internal/matcher"
)

const csvFileName = "matches.csv"

// ErrNoResults means no match run has been stored yet.
var ErrNoResults = errors.New("no match results found")

// Store reads and writes the ResultSet of the most recent match run as a CSV
// file. Each run atomically replaces the previous one; there is no run
// history.
type Store struct {
	dir string
}

// NewStore creates a store backed by the given output directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the CSV file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, csvFileName)
}

// Save writes the result set, replacing any previous run's output. The write
// goes through a temp file and rename so readers never observe a partial file.
func (s *Store) Save(set matcher.ResultSet) error {
	tmp, err := os.CreateTemp(s.dir, csvFileName+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"image_path", "max_similarity", "face_count", "is_match"}); err != nil {
		tmp.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range set {
		row := []string{
			r.ImagePath,
			strconv.FormatFloat(r.MaxSimilarity, 'f', 6, 64),
			strconv.Itoa(r.FaceCount),
			boolToCSV(r.IsMatch),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("writing record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("replacing results file: %w", err)
	}
	return nil
}

// Load reads back the stored result set. Returns ErrNoResults when no run has
// been saved yet.
func (s *Store) Load() (matcher.ResultSet, error) {
	f, err := os.Open(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoResults
		}
		return nil, fmt.Errorf("opening results file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoResults
	}

	set := make(matcher.ResultSet, 0, len(rows)-1)
	for _, row := range rows[1:] { // skip header
		if len(row) != 4 {
			return nil, fmt.Errorf("malformed results row: %v", row)
		}
		sim, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing similarity %q: %w", row[1], err)
		}
		count, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("parsing face count %q: %w", row[2], err)
		}
		set = append(set, matcher.MatchRecord{
			ImagePath:     row[0],
			MaxSimilarity: sim,
			FaceCount:     count,
			IsMatch:       row[3] == "1",
		})
	}
	return set, nil
}

// Matches returns the records above the threshold.
func Matches(set matcher.ResultSet) []matcher.MatchRecord {
	var matches []matcher.MatchRecord
	for _, r := range set {
		if r.IsMatch {
			matches = append(matches, r)
		}
	}
	return matches
}

func boolToCSV(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
