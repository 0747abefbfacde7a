package reinforcement

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	. "gridlearn/grid_world"

	"gopkg.in/yaml.v3"
)

// tableFormatVersion is bumped whenever the persisted layout changes.
const tableFormatVersion = 1

// PersistenceError reports an I/O or format failure while saving or loading a table.
// The in-memory table is left untouched when one is returned.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("qtable %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("qtable %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type tableFile struct {
	Version int          `yaml:"version"`
	Entries []tableEntry `yaml:"entries"`
}

type tableEntry struct {
	Head    Position  `yaml:"head,flow"`
	Sensors []string  `yaml:"sensors,flow"`
	Values  []float64 `yaml:"values,flow"`
}

// Encode writes every state and its action values. Floats are written in their shortest
// exact form, so Decode reproduces the table bit for bit.
func (q *QTable) Encode(w io.Writer) error {
	file := tableFile{Version: tableFormatVersion}
	for _, s := range q.States() {
		entry := tableEntry{
			Head:    s.Head,
			Sensors: make([]string, NumActions),
			Values:  make([]float64, NumActions),
		}
		for i, r := range s.Sensors {
			entry.Sensors[i] = r.String()
		}
		copy(entry.Values, q.values[s][:])
		file.Entries = append(file.Entries, entry)
	}

	enc := yaml.NewEncoder(w)
	if err := enc.Encode(&file); err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	if err := enc.Close(); err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	return nil
}

// Decode replaces the table's contents with those read from r. Nothing is merged:
// states absent from r are gone afterwards. On error the table is unchanged.
func (q *QTable) Decode(r io.Reader) error {
	var file tableFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return &PersistenceError{Op: "decode", Err: err}
	}
	if file.Version != 0 && file.Version != tableFormatVersion {
		return &PersistenceError{Op: "decode", Err: fmt.Errorf("unsupported version %d", file.Version)}
	}

	values := make(map[State]*ActionValues, len(file.Entries))
	for i, entry := range file.Entries {
		if len(entry.Sensors) != NumActions || len(entry.Values) != NumActions {
			return &PersistenceError{Op: "decode", Err: fmt.Errorf("entry %d: expected %d sensors and values", i, NumActions)}
		}
		s := State{Head: entry.Head}
		for j, name := range entry.Sensors {
			reading, err := ParseReading(name)
			if err != nil {
				return &PersistenceError{Op: "decode", Err: fmt.Errorf("entry %d: %w", i, err)}
			}
			s.Sensors[j] = reading
		}
		av := &ActionValues{}
		copy(av[:], entry.Values)
		values[s] = av
	}

	q.values = values
	return nil
}

// Save writes the table to path. The file is written beside its destination and renamed
// into place, so a failed save never leaves a truncated table behind.
func (q *QTable) Save(path string) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}

	var tmp *os.File
	if tmp, err = os.CreateTemp(dir, filepath.Base(path)+".*.tmp"); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = q.Encode(tmp); err != nil {
		_ = tmp.Close()
		return withPath(err, "save", path)
	}
	if err = tmp.Close(); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// Load replaces the table with the one stored at path. A missing file is reported like any
// other failure; callers that tolerate a cold start should check Exists first.
func (q *QTable) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &PersistenceError{Op: "load", Path: path, Err: err}
	}
	defer f.Close()

	if err = q.Decode(f); err != nil {
		return withPath(err, "load", path)
	}
	return nil
}

// withPath labels an Encode or Decode failure with the file it concerns.
func withPath(err error, op, path string) error {
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return &PersistenceError{Op: op, Path: path, Err: perr.Err}
	}
	return &PersistenceError{Op: op, Path: path, Err: err}
}

// Exists reports whether a regular file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
