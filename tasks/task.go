// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package tasks runs the continual learning protocol: a network is trained on
a sequence of two-class tasks, one after another, and after each task it is
tested on that task and every earlier one.  The resulting accuracy matrix,
Acc[tested task, trained-through task, run], measures both how well each
task is learned and how much of it survives later learning.
*/
package tasks

import "fmt"

// Dataset is a read-only labeled image collection.  Implementations must
// be safe for concurrent reads.
type Dataset interface {
	Len() int
	Image(i int) []float32
	Label(i int) int
}

// Task is an ordered pair of labels: examples of A train output 0,
// examples of B train output 1.
type Task struct {
	A, B int
}

// NewTasks converts label pairs into tasks.
func NewTasks(pairs [][2]int) []Task {
	tks := make([]Task, len(pairs))
	for i, p := range pairs {
		tks[i] = Task{A: p[0], B: p[1]}
	}
	return tks
}

// String returns e.g. "0/1"
func (tk Task) String() string {
	return fmt.Sprintf("%d/%d", tk.A, tk.B)
}

// Target returns the output unit trained for label: 0 for A, 1 for B,
// and -1 if the label is not part of the task.
func (tk Task) Target(label int) int {
	switch label {
	case tk.A:
		return 0
	case tk.B:
		return 1
	}
	return -1
}

// Filter returns the indexes in idx whose examples in ds belong to the
// task: all of the A examples, then all of the B examples, each in
// idx order.
func (tk Task) Filter(ds Dataset, idx []int) []int {
	var as, bs []int
	for _, i := range idx {
		switch ds.Label(i) {
		case tk.A:
			as = append(as, i)
		case tk.B:
			bs = append(bs, i)
		}
	}
	return append(as, bs...)
}
