package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// InstrumentOutput receives named text blobs, like an HTTP exchange or a page that failed to parse.
type InstrumentOutput interface {
	Write(id string, contents string)
}

// FilesystemOutput writes every blob into its own file inside a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput creates dir if needed, existing files are kept.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

// Path returns where a blob with the given id ends up.
func (o FilesystemOutput) Path(id string) string {
	return filepath.Join(o.directory, id)
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(o.Path(id), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write dump file", "id", id, "err", err)
	}
}
