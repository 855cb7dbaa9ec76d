package osmprocessing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
)

// Source is an osm.Scanner that also releases the file it reads from.
type Source struct {
	osm.Scanner
	f *os.File
}

func (s *Source) Close() error {
	err := s.Scanner.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenSource opens an OSM file and picks the decoder from its extension:
// .pbf files go through osmpbf with procs decoding goroutines, .osm and .xml
// files through osmxml.
func OpenSource(ctx context.Context, fname string, procs int) (*Source, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", fname, err)
	}

	scanner, err := newScanner(ctx, fname, f, procs)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Source{Scanner: scanner, f: f}, nil
}

func newScanner(ctx context.Context, fname string, r io.Reader, procs int) (osm.Scanner, error) {
	switch ext := strings.ToLower(filepath.Ext(fname)); ext {
	case ".pbf":
		if procs < 1 {
			procs = 1
		}
		return osmpbf.New(ctx, r, procs), nil
	case ".osm", ".xml":
		return osmxml.New(ctx, r), nil
	default:
		return nil, fmt.Errorf("unsupported input %q: want .pbf, .osm or .xml", fname)
	}
}

// ObjectScanner replays objects that are already in memory.
type ObjectScanner struct {
	objects []osm.Object
	pos     int
	err     error
}

func NewObjectScanner(objects []osm.Object) *ObjectScanner {
	return &ObjectScanner{objects: objects, pos: -1}
}

// FailAfter makes the scanner stop with err once the objects are exhausted.
func (s *ObjectScanner) FailAfter(err error) *ObjectScanner {
	s.err = err
	return s
}

func (s *ObjectScanner) Scan() bool {
	if s.pos+1 >= len(s.objects) {
		s.pos = len(s.objects)
		return false
	}
	s.pos++
	return true
}

func (s *ObjectScanner) Object() osm.Object {
	if s.pos < 0 || s.pos >= len(s.objects) {
		return nil
	}
	return s.objects[s.pos]
}

func (s *ObjectScanner) Err() error {
	if s.pos >= len(s.objects) {
		return s.err
	}
	return nil
}

func (s *ObjectScanner) Close() error {
	return nil
}
