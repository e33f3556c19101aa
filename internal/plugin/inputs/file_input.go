package inputs

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin"
)

const defaultBatchSize = 1000

type fileState struct {
	modTime time.Time
	size    int64
}

// FileInput turns every file matching the configured globs into one
// record. A file is read again only when its size or modification time
// changes.
type FileInput struct {
	plugin.BasePlugin
	paths      []string
	batchSize  int
	removeRead bool
	seen       map[string]fileState
	mutex      sync.Mutex
}

// NewFileInput creates a new file input plugin
func NewFileInput(id string) *FileInput {
	return &FileInput{
		BasePlugin: plugin.NewBasePlugin(id, "File Input", model.InputPluginType),
		batchSize:  defaultBatchSize,
		seen:       make(map[string]fileState),
	}
}

// Initialize prepares the file input for operation
func (f *FileInput) Initialize() bool {
	f.paths = plugin.StringSlice(f.Config["paths"])
	if n := plugin.IntValue(f.Config, "batch_size", defaultBatchSize); n > 0 {
		f.batchSize = n
	}
	f.removeRead = plugin.BoolValue(f.Config, "remove_after_read", false)

	if len(f.paths) == 0 {
		f.Logger().Error("no paths configured")
		f.SetStatus(model.StatusError)
		return false
	}
	f.SetStatus(model.StatusInitialized)
	return true
}

// Start begins file input operation
func (f *FileInput) Start() bool {
	f.SetStatus(model.StatusRunning)
	return true
}

// Stop halts file input operation
func (f *FileInput) Stop() bool {
	f.SetStatus(model.StatusStopped)
	return true
}

// Validate checks that at least one well-formed glob is configured
func (f *FileInput) Validate() error {
	paths := plugin.StringSlice(f.Config["paths"])
	if len(paths) == 0 {
		return plugin.ValidationResult{Property: "paths", Err: plugin.ErrMissing}
	}
	for _, p := range paths {
		if _, err := filepath.Match(p, ""); err != nil {
			return plugin.ValidationResult{Property: "paths", Err: err}
		}
	}
	return nil
}

// Collect reads new or changed files, at most batch_size per call
func (f *FileInput) Collect() []*model.Record {
	if f.GetStatus() != model.StatusRunning {
		return nil
	}

	var records []*model.Record
	for _, pattern := range f.paths {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			f.Logger().Warn("invalid glob", "pattern", pattern, "error", err)
			continue
		}

		for _, path := range matches {
			if len(records) >= f.batchSize {
				return records
			}
			record, err := f.readFile(path)
			if err != nil {
				f.Logger().Warn("failed to read file", "path", path, "error", err)
				f.PublishEvent(model.EventError, map[string]interface{}{"path": path, "error": err.Error()})
				continue
			}
			if record != nil {
				records = append(records, record)
			}
		}
	}
	return records
}

var errNotRegular = errors.New("not a regular file")

// readFile returns nil when the file is unchanged since it was last read
func (f *FileInput) readFile(path string) (*model.Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, nil
	}
	if !info.Mode().IsRegular() {
		return nil, errNotRegular
	}

	state := fileState{modTime: info.ModTime(), size: info.Size()}
	f.mutex.Lock()
	previous, exists := f.seen[path]
	f.mutex.Unlock()
	if exists && previous.size == state.size && previous.modTime.Equal(state.modTime) {
		return nil, nil
	}

	record, err := ReadFileRecord(f.ID(), path)
	if err != nil {
		return nil, err
	}

	if f.removeRead {
		if err := os.Remove(path); err != nil {
			f.Logger().Warn("failed to remove file", "path", path, "error", err)
		}
	} else {
		f.mutex.Lock()
		f.seen[path] = state
		f.mutex.Unlock()
	}
	return record, nil
}

// ReadFileRecord reads a whole file into a record carrying the filename,
// path, absolute.path and file.size attributes
func ReadFileRecord(source, path string) (*model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	record := model.NewRecord(source, data)
	record.PutAllAttributes(map[string]string{
		model.AttrFilename:     filepath.Base(path),
		model.AttrPath:         filepath.Dir(path),
		model.AttrAbsolutePath: abs,
		model.AttrFileSize:     strconv.Itoa(len(data)),
	})
	return record, nil
}

// Stats returns the number of files being tracked
func (f *FileInput) Stats() map[string]interface{} {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return map[string]interface{}{"tracked_files": len(f.seen)}
}
