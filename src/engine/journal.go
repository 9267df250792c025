package engine

// The journal records every top-level operation run against a project, one
// Extended JSON document per line, in a file per day.

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"ssashelper/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/multierr"
)

const (
	journalBaseName   = "ssashelper"
	journalExt        = ".journal"
	journalDateLayout = "2006-01-02"
)

var journalFilePattern = regexp.MustCompile(`^` + journalBaseName + `_(\d{4}-\d{2}-\d{2})` + regexp.QuoteMeta(journalExt) + `$`)

// JournalEntry represents a single entry in the journal.
type JournalEntry struct {
	Timestamp time.Time `bson:"timestamp"`
	Command   string    `bson:"command"`
	Project   string    `bson:"project"`
	Details   string    `bson:"details"`
}

// Journal appends entries to <dir>/ssashelper_<date>.journal.
type Journal struct {
	dir           string
	file          *os.File
	currentDate   time.Time
	retentionDays int
	now           func() time.Time
}

// NewJournal opens today's journal file in dir.
func NewJournal(dir string, retentionDays int) (*Journal, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("journal directory is required")
	}
	j := &Journal{
		dir:           dir,
		retentionDays: retentionDays,
		now:           time.Now,
	}

	if err := j.ensureCorrectFileOpen(); err != nil {
		return nil, err
	}
	return j, nil
}

// JournalFileName returns the journal file of the day t falls on.
func JournalFileName(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", journalBaseName, t.Format(journalDateLayout), journalExt))
}

func today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ensureCorrectFileOpen ensures the correct journal file is open based on current date
func (j *Journal) ensureCorrectFileOpen() error {
	day := today(j.now())

	if j.file != nil && j.currentDate.Equal(day) {
		return nil
	}

	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return fmt.Errorf("failed to close previous journal file: %w", err)
		}
		j.file = nil
	}

	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	fileName := JournalFileName(j.dir, day)
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal file %s: %w", fileName, err)
	}

	j.file = file
	j.currentDate = day
	return nil
}

// AddEntry adds a new entry to the journal.
func (j *Journal) AddEntry(command, project, details string) error {
	if err := j.ensureCorrectFileOpen(); err != nil {
		return err
	}

	entry := JournalEntry{
		Timestamp: j.now().UTC(),
		Command:   command,
		Project:   project,
		Details:   details,
	}

	line, err := bson.MarshalExtJSON(entry, false, false)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := j.file.Write(line); err != nil {
		return fmt.Errorf("failed to write to journal file: %w", err)
	}
	return nil
}

// Path returns the file entries are currently written to.
func (j *Journal) Path() string {
	return JournalFileName(j.dir, j.currentDate)
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return fmt.Errorf("failed to close journal file: %w", err)
		}
		j.file = nil
	}
	return nil
}

// CleanupOldJournals deletes journal files dated before the retention window.
// A retention of zero keeps everything. It returns the number of files removed.
func (j *Journal) CleanupOldJournals() (int, error) {
	if j.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := today(j.now()).AddDate(0, 0, -j.retentionDays)

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list journal directory: %w", err)
	}

	removed := 0
	var errs error
	for _, entry := range entries {
		match := journalFilePattern.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		date, err := time.ParseInLocation(journalDateLayout, match[1], cutoff.Location())
		if err != nil || !date.Before(cutoff) {
			continue
		}
		if err := helpers.DeleteDataFile(filepath.Join(j.dir, entry.Name())); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}

// ReadJournal parses every entry of a journal file.
func ReadJournal(path string) ([]JournalEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal file %s: %w", path, err)
	}

	var entries []JournalEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; scanner.Scan(); n++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry JournalEntry
		if err := bson.UnmarshalExtJSON(line, false, &entry); err != nil {
			return nil, fmt.Errorf("journal %s line %d: %w", path, n, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan journal file %s: %w", path, err)
	}
	return entries, nil
}
