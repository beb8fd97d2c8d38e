// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package memsnn is the overall repository for simulating continual learning
in a spiking neural network whose synapses are realized by memristive
crossbars, implemented in the Go language (golang).

This top-level of the repository has no functional code -- everything is organized
into the following sub-packages:

* device: the memristive device model -- a palette of discrete resistance
levels with programming noise, groups of parallel devices per synapse, the
linear conductance -> weight calibration, and the quartile-balanced
initializer.

* spike: Poisson rate coding of images and labels into binned spike trains.

* snn: the network itself -- leaky integrate-and-fire input, hidden and output
layers, the two crossbar projections, the error neurons and error
compartments that carry random feedback to the hidden layer, and the
threshold-gated learning rule that steps single devices between levels.

* mnist: reading the MNIST IDX files.

* tasks: the continual learning protocol -- a sequence of two-class tasks,
accuracy matrices across runs, and parallel sweeps over commit thresholds.

* config: the complete simulation configuration, read from TOML or YAML.

* results: result documents, CSV accuracy logs and the resumable SQLite ledger.

* logging: structured logging and progress lines.

* cmd/memsnn: the command line program.
*/
package memsnn
