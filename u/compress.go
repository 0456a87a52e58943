package u

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Compression is a compression format, identified by file extension
type Compression string

const (
	CompressionNone   Compression = ""
	CompressionGzip   Compression = "gzip"
	CompressionBrotli Compression = "brotli"
	CompressionZstd   Compression = "zstd"
	// only for reading
	CompressionBzip2 Compression = "bzip2"
)

// CompressionForPath returns compression format based on file extension
func CompressionForPath(path string) Compression {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gz":
		return CompressionGzip
	case ".br":
		return CompressionBrotli
	case ".zst", ".zstd":
		return CompressionZstd
	case ".bz2":
		return CompressionBzip2
	}
	return CompressionNone
}

// implement io.ReadCloser over os.File wrapped with io.Reader.
// Close closes both the wrapping reader (if it's io.Closer) and os.File
type readerWrappedFile struct {
	f *os.File
	r io.Reader
}

func (rc *readerWrappedFile) Close() error {
	if c, ok := rc.r.(io.Closer); ok {
		_ = c.Close()
	}
	return rc.f.Close()
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

func wrapInReadCloser(f *os.File, r io.Reader, err error) (io.ReadCloser, error) {
	if err != nil {
		f.Close()
		return nil, err
	}
	return &readerWrappedFile{
		f: f,
		r: r,
	}, nil
}

// OpenFileMaybeCompressed opens a file that might be compressed with gzip
// or bzip2 or zstd or brotli, based on file extension
func OpenFileMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch CompressionForPath(path) {
	case CompressionGzip:
		r, err := gzip.NewReader(f)
		return wrapInReadCloser(f, r, err)
	case CompressionBzip2:
		return wrapInReadCloser(f, bzip2.NewReader(f), nil)
	case CompressionZstd:
		r, err := zstd.NewReader(f)
		if err != nil {
			return wrapInReadCloser(f, nil, err)
		}
		return wrapInReadCloser(f, r.IOReadCloser(), nil)
	case CompressionBrotli:
		return wrapInReadCloser(f, brotli.NewReader(f), nil)
	}
	return f, nil
}

// ReadFileMaybeCompressed reads a file, decompressing based on extension
func ReadFileMaybeCompressed(path string) ([]byte, error) {
	r, err := OpenFileMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func getErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func zstdNewWriter(dst io.Writer) (*zstd.Encoder, error) {
	// in my tests:
	// - zstd.SpeedBestCompression is much slower and not much better
	// - default concurrency is GONUMPROCS() but adding concurrency of any value
	//   doesn't consistently speed things up
	return zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
}

func newCompressWriter(dst io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return gzip.NewWriterLevel(dst, gzip.BestCompression)
	case CompressionBrotli:
		return brotli.NewWriterLevel(dst, brotli.BestCompression), nil
	case CompressionZstd:
		return zstdNewWriter(dst)
	}
	return nil, fmt.Errorf("compressing with '%s' is not supported", c)
}

// CompressData compresses d. CompressionNone returns d unchanged.
func CompressData(d []byte, c Compression) ([]byte, error) {
	if c == CompressionNone {
		return d, nil
	}
	var dst bytes.Buffer
	w, err := newCompressWriter(&dst, c)
	if err != nil {
		return nil, err
	}
	_, err = w.Write(d)
	err2 := w.Close()
	if err = getErr(err, err2); err != nil {
		return nil, err
	}
	return dst.Bytes(), nil
}
