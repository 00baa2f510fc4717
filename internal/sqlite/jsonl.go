package sqlite

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONL file names inside DataDir.
const (
	characteristicsJSONL      = "characteristics.jsonl"
	groupsJSONL               = "groups.jsonl"
	groupCharacteristicsJSONL = "group_characteristics.jsonl"
	recordsJSONL              = "records.jsonl"
	recordValuesJSONL         = "record_values.jsonl"
	changesJSONL              = "changes.jsonl"
)

// allJSONL lists every JSONL file the backend owns.
var allJSONL = []string{
	characteristicsJSONL,
	groupsJSONL,
	groupCharacteristicsJSONL,
	recordsJSONL,
	recordValuesJSONL,
	changesJSONL,
}

// initJSONLFiles creates empty JSONL files that do not exist yet.
func initJSONLFiles(dataDir string) error {
	for _, name := range allJSONL {
		path := filepath.Join(dataDir, name)
		_, err := os.Stat(path)
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", name, err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
	}
	return nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// jsonlBatch replaces several JSONL files together. Every file is
// written to a synced temp file first; nothing is renamed into place until
// all of them are staged.
type jsonlBatch struct {
	staged []stagedJSONL
}

type stagedJSONL struct {
	tmp  string
	path string
}

// stage writes records to a temp file next to path.
func (b *jsonlBatch) stage(path string, records []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(step string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", step, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	b.staged = append(b.staged, stagedJSONL{tmp: tmpName, path: path})
	return nil
}

// commit renames every staged file over its target. Temp files that were
// not renamed are removed on failure.
func (b *jsonlBatch) commit() error {
	for i, f := range b.staged {
		if err := os.Rename(f.tmp, f.path); err != nil {
			b.staged = b.staged[i:]
			b.discard()
			return fmt.Errorf("renaming temp file for %s: %w", filepath.Base(f.path), err)
		}
	}
	b.staged = nil
	return nil
}

// discard removes every staged temp file. It is a no-op after commit.
func (b *jsonlBatch) discard() {
	for _, f := range b.staged {
		os.Remove(f.tmp)
	}
	b.staged = nil
}
