package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"hnsaved/internal/scrapers/hackernews"

	"github.com/goccy/go-json"
)

// JSONStore keeps the dataset as one JSON object keyed by id, the format
// the archive has always been written in.
type JSONStore struct {
	path   string
	stdout io.Writer
}

func NewJSONStore(path string, stdout io.Writer) JSONStore {
	if stdout == nil {
		stdout = os.Stdout
	}
	return JSONStore{path: path, stdout: stdout}
}

func (s JSONStore) Load(ctx context.Context) (hackernews.Dataset, error) {
	if s.path == StdoutPath {
		return hackernews.Dataset{}, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return hackernews.Dataset{}, nil
	}
	if err != nil {
		return nil, err
	}

	var dataset hackernews.Dataset
	err = json.Unmarshal(data, &dataset)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if dataset == nil {
		dataset = hackernews.Dataset{}
	}
	dataset.FillIds()
	return dataset, nil
}

func (s JSONStore) Save(ctx context.Context, dataset hackernews.Dataset, run Run) error {
	encoded, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')

	if s.path == StdoutPath {
		_, err = s.stdout.Write(encoded)
		return err
	}

	dir := filepath.Dir(s.path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	// written next to the destination and renamed over it so an interrupted
	// write never leaves a truncated archive behind
	tmp, err := os.CreateTemp(dir, ".hnss-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(encoded)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s JSONStore) Close() error {
	return nil
}
