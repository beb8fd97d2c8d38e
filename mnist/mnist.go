// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mnist reads handwritten digit images and labels in the IDX
// format, optionally gzipped, and provides them as normalized datasets.
package mnist

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// IDX magic numbers: unsigned byte data with 3 (images) or 1 (labels) dimensions.
const (
	ImageMagic = 0x00000803
	LabelMagic = 0x00000801
)

// standard file names, without the optional .gz suffix
const (
	TrainImages = "train-images-idx3-ubyte"
	TrainLabels = "train-labels-idx1-ubyte"
	TestImages  = "t10k-images-idx3-ubyte"
	TestLabels  = "t10k-labels-idx1-ubyte"
)

// ErrFormat is returned for malformed IDX data.
var ErrFormat = errors.New("mnist: bad IDX data")

// header limits, checked before any data is read
const (
	MaxDim    = 1 << 12
	MaxPixels = 1 << 31
	MaxLabels = 1 << 28
)

// Raw is the undecoded content of an image file.
type Raw struct {
	N, Rows, Cols int
	Pixels        []uint8
}

// ReadImages reads an IDX image file.
func ReadImages(r io.Reader) (*Raw, error) {
	var hdr [4]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: image header: %v", ErrFormat, err)
	}
	if hdr[0] != ImageMagic {
		return nil, fmt.Errorf("%w: image magic %#08x", ErrFormat, hdr[0])
	}
	if hdr[2] == 0 || hdr[3] == 0 || hdr[2] > MaxDim || hdr[3] > MaxDim {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrFormat, hdr[2], hdr[3])
	}
	total := uint64(hdr[1]) * uint64(hdr[2]) * uint64(hdr[3])
	if total > MaxPixels {
		return nil, fmt.Errorf("%w: %d images of %dx%d exceed %d pixels", ErrFormat, hdr[1], hdr[2], hdr[3], int64(MaxPixels))
	}
	raw := &Raw{N: int(hdr[1]), Rows: int(hdr[2]), Cols: int(hdr[3])}
	pix, err := readN(r, int64(total))
	if err != nil {
		return nil, fmt.Errorf("%w: %d images of %dx%d: %v", ErrFormat, raw.N, raw.Rows, raw.Cols, err)
	}
	raw.Pixels = pix
	return raw, nil
}

// ReadLabels reads an IDX label file.
func ReadLabels(r io.Reader) ([]int, error) {
	var hdr [2]uint32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: label header: %v", ErrFormat, err)
	}
	if hdr[0] != LabelMagic {
		return nil, fmt.Errorf("%w: label magic %#08x", ErrFormat, hdr[0])
	}
	if hdr[1] > MaxLabels {
		return nil, fmt.Errorf("%w: %d labels exceed %d", ErrFormat, hdr[1], MaxLabels)
	}
	buf, err := readN(r, int64(hdr[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: %d labels: %v", ErrFormat, hdr[1], err)
	}
	lbls := make([]int, len(buf))
	for i, b := range buf {
		lbls[i] = int(b)
	}
	return lbls, nil
}

// readN reads exactly n bytes, growing the buffer as data arrives so a
// header that overstates the size costs no more than the data present.
func readN(r io.Reader, n int64) ([]byte, error) {
	var b bytes.Buffer
	got, err := io.CopyN(&b, r, n)
	if got < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b.Bytes(), nil
}

// WriteImages writes images in the IDX format.
func WriteImages(w io.Writer, raw *Raw) error {
	hdr := [4]uint32{ImageMagic, uint32(raw.N), uint32(raw.Rows), uint32(raw.Cols)}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		return err
	}
	_, err := w.Write(raw.Pixels)
	return err
}

// WriteLabels writes labels in the IDX format.
func WriteLabels(w io.Writer, lbls []int) error {
	hdr := [2]uint32{LabelMagic, uint32(len(lbls))}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		return err
	}
	buf := make([]uint8, len(lbls))
	for i, l := range lbls {
		buf[i] = uint8(l)
	}
	_, err := w.Write(buf)
	return err
}

// openIDX opens dir/name, or dir/name.gz if the plain file does not exist.
func openIDX(dir, name string) (io.ReadCloser, error) {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err == nil {
		return struct {
			io.Reader
			io.Closer
		}{bufio.NewReader(f), f}, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	f, err = os.Open(path + ".gz")
	if err != nil {
		return nil, fmt.Errorf("mnist: neither %s nor %s.gz: %w", path, path, err)
	}
	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mnist: %s.gz: %w", path, err)
	}
	return &gzFile{Reader: zr, f: f}, nil
}

type gzFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzFile) Close() error {
	return errors.Join(g.Reader.Close(), g.f.Close())
}

// LoadSet reads one image / label file pair from dir.
func LoadSet(dir, images, labels string) (*Set, error) {
	ir, err := openIDX(dir, images)
	if err != nil {
		return nil, err
	}
	defer ir.Close()
	raw, err := ReadImages(ir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", images, err)
	}
	lr, err := openIDX(dir, labels)
	if err != nil {
		return nil, err
	}
	defer lr.Close()
	lbls, err := ReadLabels(lr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", labels, err)
	}
	return FromRaw(raw, lbls)
}

// Load reads the standard training and test sets from dir.
func Load(dir string) (train, test *Set, err error) {
	train, err = LoadSet(dir, TrainImages, TrainLabels)
	if err != nil {
		return nil, nil, err
	}
	test, err = LoadSet(dir, TestImages, TestLabels)
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}
