// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vector implements the semantic-similarity subsystem (spec.md
// §4.5): append-only, memory-mapped vector segment files, IVF-style
// clustering, cosine-similarity ANN query, and Reciprocal Rank Fusion with
// the text index. Grounded on the teacher's embedded-store segment
// discipline (pkg/storage/embedded.go's append-only write path) and on
// blevesearch/mmap-go, the memory-mapping library bleve itself depends on.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/blevesearch/mmap-go"

	"github.com/bartolli/codanna/internal/coderr"
	"github.com/bartolli/codanna/internal/types"
)

const (
	segmentMagic   uint32 = 0x43444e41 // "CDNA"
	segmentVersion uint32 = 1
	headerSize            = 16 // magic, version, dimension, vector_count (all uint32)
)

// segmentHeader is the fixed-size prefix of every segment file.
type segmentHeader struct {
	Magic       uint32
	Version     uint32
	Dimension   uint32
	VectorCount uint32
}

// record is one [symbol_id, vector] entry within a segment, in insertion
// order. Dead entries (superseded by reindex or file removal) stay
// physically present until compaction; liveness is tracked separately.
type record struct {
	SymbolID types.SymbolID
	Vector   []float32
}

func recordSize(dim int) int { return 4 + dim*4 }

// segment is one memory-mapped generation file. Readers trust only the
// header-declared VectorCount, tolerating a partially written tail from a
// crash mid-append.
type segment struct {
	path   string
	file   *os.File
	mm     mmap.MMap
	header segmentHeader
	// live marks entries not yet superseded; index-aligned with insertion
	// order. Every entry is marked live on open; dead marks are not persisted.
	live []bool
}

// createSegment writes a fresh segment file containing the given records
// and opens it memory-mapped for reading.
func createSegment(path string, dimension int, records []record) (*segment, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, coderr.NewIOError(err, "creating vector segment "+path)
	}
	defer f.Close()

	hdr := segmentHeader{
		Magic:       segmentMagic,
		Version:     segmentVersion,
		Dimension:   uint32(dimension),
		VectorCount: uint32(len(records)),
	}
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], hdr.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], hdr.Version)
	binary.LittleEndian.PutUint32(buf[8:12], hdr.Dimension)
	binary.LittleEndian.PutUint32(buf[12:16], hdr.VectorCount)
	if _, err := f.Write(buf); err != nil {
		return nil, coderr.NewIOError(err, "writing vector segment header")
	}

	recBuf := make([]byte, recordSize(dimension))
	for _, r := range records {
		binary.LittleEndian.PutUint32(recBuf[0:4], uint32(r.SymbolID))
		for i, v := range r.Vector {
			binary.LittleEndian.PutUint32(recBuf[4+i*4:8+i*4], math.Float32bits(v))
		}
		if _, err := f.Write(recBuf); err != nil {
			return nil, coderr.NewIOError(err, "writing vector segment record")
		}
	}
	if err := f.Sync(); err != nil {
		return nil, coderr.NewIOError(err, "fsyncing vector segment")
	}
	return openSegment(path)
}

// appendRecords creates a new segment combining this one's live entries
// with the given additional records, matching the append-only discipline
// of spec.md §5 ("remapped whenever a new segment file is appended").
func (s *segment) appendRecords(path string, extra []record) (*segment, error) {
	all := make([]record, 0, len(extra)+int(s.header.VectorCount))
	for i := 0; i < int(s.header.VectorCount); i++ {
		if i < len(s.live) && !s.live[i] {
			continue
		}
		r, err := s.recordAt(i)
		if err != nil {
			return nil, err
		}
		all = append(all, r)
	}
	all = append(all, extra...)
	return createSegment(path, int(s.header.Dimension), all)
}

func openSegment(path string) (*segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, coderr.NewIOError(err, "opening vector segment "+path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, coderr.NewIOError(err, "statting vector segment "+path)
	}
	if info.Size() < headerSize {
		f.Close()
		return nil, coderr.NewVectorCorruption(path, fmt.Errorf("file smaller than header (%d bytes)", info.Size()))
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, coderr.NewIOError(err, "mmapping vector segment "+path)
	}

	hdr := segmentHeader{
		Magic:       binary.LittleEndian.Uint32(m[0:4]),
		Version:     binary.LittleEndian.Uint32(m[4:8]),
		Dimension:   binary.LittleEndian.Uint32(m[8:12]),
		VectorCount: binary.LittleEndian.Uint32(m[12:16]),
	}
	if hdr.Magic != segmentMagic {
		m.Unmap()
		f.Close()
		return nil, coderr.NewVectorCorruption(path, fmt.Errorf("bad magic %x", hdr.Magic))
	}
	if hdr.Version != segmentVersion {
		m.Unmap()
		f.Close()
		return nil, coderr.NewVectorCorruption(path, fmt.Errorf("unsupported version %d", hdr.Version))
	}

	// Trust only the header-declared count; a truncated tail from a crash
	// mid-append is detected here and the count clamped down accordingly.
	recSize := recordSize(int(hdr.Dimension))
	available := (len(m) - headerSize) / recSize
	if available < int(hdr.VectorCount) {
		hdr.VectorCount = uint32(available)
	}

	return &segment{
		path:   path,
		file:   f,
		mm:     m,
		header: hdr,
		live:   make([]bool, hdr.VectorCount), // caller fills in liveness
	}, nil
}

func (s *segment) close() error {
	if err := s.mm.Unmap(); err != nil {
		return err
	}
	return s.file.Close()
}

// recordAt decodes the record at insertion-order index i.
func (s *segment) recordAt(i int) (record, error) {
	if i < 0 || i >= int(s.header.VectorCount) {
		return record{}, coderr.NewVectorCorruption(s.path, fmt.Errorf("index %d out of range", i))
	}
	dim := int(s.header.Dimension)
	recSize := recordSize(dim)
	off := headerSize + i*recSize
	sym := types.SymbolID(binary.LittleEndian.Uint32(s.mm[off : off+4]))
	vec := make([]float32, dim)
	for d := 0; d < dim; d++ {
		p := off + 4 + d*4
		vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(s.mm[p : p+4]))
	}
	return record{SymbolID: sym, Vector: vec}, nil
}
