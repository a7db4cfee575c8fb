package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileDecoder struct {
	name string
	ext  string
	fn   func([]byte, any) error
}

var fileDecoders = []fileDecoder{
	{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
	{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
	{name: "json", ext: ".json", fn: json.Unmarshal},
}

// DecodeFile reads the YAML or JSON file at path into a T. The extension
// picks the decoder; any other extension tries each decoder in turn.
// kind names the file in error messages ("targets", "publishers").
func DecodeFile[T any](path, kind string) (T, error) {
	var zero T
	path = strings.TrimSpace(path)
	if path == "" {
		return zero, fmt.Errorf("%s file path is empty", kind)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read %s file: %w", kind, err)
	}
	return decodeBytes[T](raw, filepath.Ext(path), kind)
}

func decodeBytes[T any](data []byte, ext, kind string) (T, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	known := slices.ContainsFunc(fileDecoders, func(d fileDecoder) bool { return d.ext == ext })

	var errs []error
	for _, d := range fileDecoders {
		if known && d.ext != ext {
			continue
		}
		var out T
		if err := d.fn(data, &out); err != nil {
			errs = append(errs, fmt.Errorf("decode %s %s: %w", d.name, kind, err))
			continue
		}
		return out, nil
	}

	var zero T
	return zero, fmt.Errorf("%s file format not recognized (expected YAML or JSON): %w", kind, errors.Join(errs...))
}
