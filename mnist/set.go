// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mnist

import "fmt"

// Set is a labeled image dataset with pixel values in [0, 1].
// Images are flattened row-major and may be shared between sets.
type Set struct {
	Rows, Cols int
	Images     [][]float32
	Labels     []int
}

// FromRaw decodes raw images, scaling by the largest pixel value in the
// set so that the brightest pixel is 1.
func FromRaw(raw *Raw, lbls []int) (*Set, error) {
	if raw.N != len(lbls) {
		return nil, fmt.Errorf("%w: %d images but %d labels", ErrFormat, raw.N, len(lbls))
	}
	var mx uint8
	for _, p := range raw.Pixels {
		if p > mx {
			mx = p
		}
	}
	sz := raw.Rows * raw.Cols
	st := &Set{Rows: raw.Rows, Cols: raw.Cols, Labels: lbls}
	st.Images = make([][]float32, raw.N)
	flat := make([]float32, raw.N*sz)
	if mx > 0 {
		for i, p := range raw.Pixels {
			flat[i] = float32(p) / float32(mx)
		}
	}
	for i := range st.Images {
		st.Images[i] = flat[i*sz : (i+1)*sz]
	}
	return st, nil
}

// NewSet returns a set from already normalized images.
func NewSet(rows, cols int, images [][]float32, labels []int) (*Set, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("%w: %d images but %d labels", ErrFormat, len(images), len(labels))
	}
	for i, im := range images {
		if len(im) != rows*cols {
			return nil, fmt.Errorf("%w: image %d has %d pixels, want %d", ErrFormat, i, len(im), rows*cols)
		}
	}
	return &Set{Rows: rows, Cols: cols, Images: images, Labels: labels}, nil
}

// Len returns the number of examples
func (st *Set) Len() int { return len(st.Labels) }

// Image returns the pixels of example i
func (st *Set) Image(i int) []float32 { return st.Images[i] }

// Label returns the label of example i
func (st *Set) Label(i int) int { return st.Labels[i] }

// Counts returns the number of examples per label.
func (st *Set) Counts() map[int]int {
	c := make(map[int]int)
	for _, l := range st.Labels {
		c[l]++
	}
	return c
}
