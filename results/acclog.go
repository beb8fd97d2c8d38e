// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emer/etable/v2/etable"
	"github.com/emer/etable/v2/etensor"
	"github.com/emer/memsnn/tasks"
)

// ConfigAccLog configures dt as the accuracy log: one row per run,
// trained-through task and tested task.
func ConfigAccLog(dt *etable.Table, rows int) {
	dt.SetMetaData("name", "AccLog")
	dt.SetMetaData("desc", "Accuracy of each tested task after each trained task")
	dt.SetMetaData("read-only", "true")
	dt.SetMetaData("precision", "4")

	sch := etable.Schema{
		{Name: "Run", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "Trained", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "Tested", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "Task", Type: etensor.STRING, CellShape: nil, DimNames: nil},
		{Name: "Acc", Type: etensor.FLOAT64, CellShape: nil, DimNames: nil},
	}
	dt.SetFromSchema(sch, rows)
}

// AccLog returns the defined (tested <= trained) accuracies of res as a
// table, ordered by run, trained task, tested task.
func AccLog(res *tasks.Result) *etable.Table {
	nt := len(res.Tasks)
	nr := res.NRuns()
	dt := &etable.Table{}
	ConfigAccLog(dt, nr*nt*(nt+1)/2)
	row := 0
	for r := 0; r < nr; r++ {
		for tr := 0; tr < nt; tr++ {
			for ts := 0; ts <= tr; ts++ {
				dt.SetCellFloat("Run", row, float64(r))
				dt.SetCellFloat("Trained", row, float64(tr))
				dt.SetCellFloat("Tested", row, float64(ts))
				dt.SetCellString("Task", row, res.Tasks[ts].String())
				dt.SetCellFloat("Acc", row, res.Acc.Value([]int{ts, tr, r}))
				row++
			}
		}
	}
	return dt
}

// SaveAccLog writes the accuracy log of res as CSV, next to the result
// document named docFile, and returns the path written.
func SaveAccLog(res *tasks.Result, docFile string) (string, error) {
	file := strings.TrimSuffix(docFile, filepath.Ext(docFile)) + ".csv"
	f, err := os.Create(file)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := AccLog(res).WriteCSV(f, etable.Comma, etable.Headers); err != nil {
		return "", fmt.Errorf("writing accuracy log %s: %w", file, err)
	}
	return file, f.Close()
}
