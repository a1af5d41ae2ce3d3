package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// BodySource produces a fresh request body for every attempt.
type BodySource interface {
	NewReader() (io.ReadCloser, error)
	ContentLength() (int64, bool)
}

// NewBodySource picks an inline body, a file body or an empty body.
func NewBodySource(inline, path string) (BodySource, error) {
	path = strings.TrimSpace(path)
	switch {
	case inline != "" && path != "":
		return nil, errors.New("body and body file cannot both be provided")
	case inline != "":
		return bytesBody(inline), nil
	case path == "":
		return bytesBody(""), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("body file %q is a directory", path)
	}
	return &fileBody{path: path, size: info.Size()}, nil
}

type bytesBody string

func (b bytesBody) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte(b))), nil
}

func (b bytesBody) ContentLength() (int64, bool) { return int64(len(b)), true }

// fileBody reopens the file per request so concurrent workers never share an offset.
type fileBody struct {
	path string
	size int64
}

func (f *fileBody) NewReader() (io.ReadCloser, error) {
	return os.Open(f.path)
}

func (f *fileBody) ContentLength() (int64, bool) { return f.size, true }
