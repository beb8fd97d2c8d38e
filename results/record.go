// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package results writes the outcome of each swept configuration: a result
document (JSON or YAML) with the per-task accuracy summary, the full
accuracy tensor and the commit counts, a CSV accuracy log, and a row in a
SQLite ledger used to resume interrupted sweeps.
*/
package results

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/emer/etable/v2/etensor"
	"github.com/emer/memsnn/tasks"
	"gopkg.in/yaml.v3"
)

// Threshold is a commit threshold as written in result documents.
// A disabled (infinite) threshold is written as "inf".
type Threshold float32

// String returns the shortest decimal form, or "inf".
func (th Threshold) String() string {
	if math.IsInf(float64(th), 1) {
		return "inf"
	}
	return strconv.FormatFloat(float64(th), 'g', -1, 32)
}

func (th Threshold) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(th), 1) {
		return []byte(`"inf"`), nil
	}
	return []byte(th.String()), nil
}

func (th *Threshold) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return fmt.Errorf("bad threshold %s: %w", b, err)
	}
	*th = Threshold(v)
	return nil
}

// Record is the result document of one configuration.
type Record struct {
	UIn  Threshold `json:"U_in" yaml:"U_in"`
	UOut Threshold `json:"U_out" yaml:"U_out"`

	// label pairs, in training order
	Tasks [][2]int `json:"tasks" yaml:"tasks"`

	NRuns int `json:"n_runs" yaml:"n_runs"`

	ClassAcc     []float64 `json:"class_Acc" yaml:"class_Acc"`
	ClassStd     []float64 `json:"class_std" yaml:"class_std"`
	ClassContAcc []float64 `json:"class_cont_Acc" yaml:"class_cont_Acc"`
	ClassContStd []float64 `json:"class_cont_std" yaml:"class_cont_std"`
	ContMean     float64   `json:"cont_mean" yaml:"cont_mean"`
	ContStd      float64   `json:"cont_std" yaml:"cont_std"`
	ClsMean      float64   `json:"cls_mean" yaml:"cls_mean"`

	// commit counts summed over runs, [hid][in][task]
	CInCount [][][]float64 `json:"c_in_count" yaml:"c_in_count"`

	// commit counts summed over runs, [out][hid][task]
	COutCount [][][]float64 `json:"c_out_count" yaml:"c_out_count"`

	// accuracy, [tested task][trained-through task][run]
	Acc [][][]float64 `json:"Acc" yaml:"Acc"`

	// silent test examples, excluded from the accuracies
	Silent int `json:"silent" yaml:"silent"`

	// total simulation time of all runs, in seconds
	Seconds float64 `json:"seconds" yaml:"seconds"`
}

// NewRecord converts an aggregated result into its document form.
func NewRecord(res *tasks.Result) *Record {
	rc := &Record{
		UIn:          Threshold(res.UIn),
		UOut:         Threshold(res.UOut),
		NRuns:        res.NRuns(),
		ClassAcc:     res.ClassAcc,
		ClassStd:     res.ClassStd,
		ClassContAcc: res.ClassContAcc,
		ClassContStd: res.ClassContStd,
		ContMean:     res.ContMean,
		ContStd:      res.ContStd,
		ClsMean:      res.ClsMean,
		CInCount:     nest3(res.InCommits),
		COutCount:    nest3(res.OutCommits),
		Acc:          nest3(res.Acc),
		Silent:       res.Silent,
		Seconds:      res.Elapsed.Seconds(),
	}
	for _, tk := range res.Tasks {
		rc.Tasks = append(rc.Tasks, [2]int{tk.A, tk.B})
	}
	return rc
}

// nest3 returns the values of a 3D tensor as nested slices.
func nest3(tsr *etensor.Float64) [][][]float64 {
	n0, n1, n2 := tsr.Dim(0), tsr.Dim(1), tsr.Dim(2)
	out := make([][][]float64, n0)
	for i := range out {
		out[i] = make([][]float64, n1)
		for j := range out[i] {
			st := (i*n1 + j) * n2
			out[i][j] = append([]float64(nil), tsr.Values[st:st+n2]...)
		}
	}
	return out
}

// FileName returns the document name for a threshold pair, e.g.
// mnist_clsacc_U_in_0.5U_out_0.06.json for ext "json".
func FileName(uin, uout float32, ext string) string {
	return fmt.Sprintf("mnist_clsacc_U_in_%sU_out_%s.%s", Threshold(uin), Threshold(uout), ext)
}

// WriteJSON writes the record to file as indented JSON.
func (rc *Record) WriteJSON(file string) error {
	b, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", file, err)
	}
	return os.WriteFile(file, append(b, '\n'), 0644)
}

// WriteYAML writes the record to file as YAML.
func (rc *Record) WriteYAML(file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(rc); err != nil {
		return fmt.Errorf("encoding result %s: %w", file, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// Save writes the record into dir in the given format (json or yaml) and
// returns the path written.
func (rc *Record) Save(dir, format string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating results dir: %w", err)
	}
	file := filepath.Join(dir, FileName(float32(rc.UIn), float32(rc.UOut), format))
	var err error
	switch format {
	case "json":
		err = rc.WriteJSON(file)
	case "yaml":
		err = rc.WriteYAML(file)
	default:
		err = fmt.Errorf("unknown result format %q", format)
	}
	return file, err
}

// Open reads a record written by Save, in either format.
func Open(file string) (*Record, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	rc := &Record{}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, rc)
	default:
		err = json.Unmarshal(b, rc)
	}
	if err != nil {
		return nil, fmt.Errorf("reading result %s: %w", file, err)
	}
	return rc, nil
}
