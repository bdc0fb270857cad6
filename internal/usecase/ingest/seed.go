package ingest

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// File is a seed document: topic nodes and chunks to load.
type File struct {
	Nodes  []NodeEntry  `yaml:"nodes"`
	Chunks []ChunkEntry `yaml:"chunks"`
}

// NodeEntry is one catalog topic in a seed file.
type NodeEntry struct {
	Path  string `yaml:"path"`
	Title string `yaml:"title"`
}

// ChunkEntry is one passage in a seed file.
type ChunkEntry struct {
	ID        string `yaml:"id"`
	TopicPath string `yaml:"topic_path"`
	Content   string `yaml:"content"`
	Snippet   string `yaml:"snippet,omitempty"`
	Subject   string `yaml:"subject,omitempty"`
	Lang      string `yaml:"lang,omitempty"`
}

// Decode parses a seed file. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &f, nil
}
