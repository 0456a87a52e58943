package export

import (
	"fmt"
	"os"

	"github.com/kjk/diary/atomicfile"
	"github.com/kjk/diary/log"
	"github.com/kjk/diary/tsv"
	"github.com/kjk/diary/u"
)

// Stats describes the result of an export
type Stats struct {
	Entries     int
	Size        int
	SizeOnDisk  int
	Compression u.Compression
	OutPath     string
	SourcePath  string
}

// File copies diary file src (or one of its backups) to dst, compressed
// based on dst extension: .gz, .br, .zst / .zstd or no compression.
// dst is written atomically.
func File(dst string, src string) (*Stats, error) {
	d, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	if !tsv.HasHeader(d) {
		return nil, fmt.Errorf("'%s' is not a diary file", src)
	}
	c := u.CompressionForPath(dst)
	compressed, err := u.CompressData(d, c)
	if err != nil {
		return nil, err
	}
	if err = atomicfile.WriteFile(dst, compressed); err != nil {
		return nil, err
	}
	stats := &Stats{
		Entries:     len(tsv.Parse(d)),
		Size:        len(d),
		SizeOnDisk:  len(compressed),
		Compression: c,
		OutPath:     dst,
		SourcePath:  src,
	}
	log.Event("diary.export", "out", dst, "entries", stats.Entries, "size", stats.Size, "compressed", stats.SizeOnDisk)
	return stats, nil
}

// ReadMaybeCompressed reads a diary file created with File
func ReadMaybeCompressed(path string) ([]byte, error) {
	d, err := u.ReadFileMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	if !tsv.HasHeader(d) {
		return nil, fmt.Errorf("'%s' is not a diary file", path)
	}
	return d, nil
}
