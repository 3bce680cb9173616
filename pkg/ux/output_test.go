// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", ModeRich},
		{"auto", ModeRich},
		{"rich", ModeRich},
		{"MACHINE", ModeMachine},
		{"plain", ModeMachine},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in, ModeRich)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseMode("sparkly", ModeRich)
	assert.Error(t, err)
}

func TestDetectMode_NonTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, ModeMachine, DetectMode(f))
}

func TestDetectMode_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, ModeMachine, DetectMode(os.Stdout))
}

func TestPrinter_MachineMode(t *testing.T) {
	var out, errw bytes.Buffer
	p := NewPrinter(&out, &errw, ModeMachine)

	p.Title("ignored")
	p.Success("stored run")
	p.Field("run_id", "abc")
	p.Warning("slow")
	p.Error("failed")

	assert.Equal(t, "OK: stored run\nrun_id\tabc\n", out.String())
	assert.Equal(t, "WARN: slow\nERROR: failed\n", errw.String())
	assert.Equal(t, ModeMachine, p.Mode())
}

func TestPrinter_RichMode(t *testing.T) {
	var out, errw bytes.Buffer
	p := NewPrinter(&out, &errw, ModeRich)

	p.Title("Diagnostics")
	p.Success("done")
	p.Field("chains", 4)
	p.Error("bad")

	assert.Contains(t, out.String(), "Diagnostics")
	assert.Contains(t, out.String(), string(IconSuccess))
	assert.Contains(t, out.String(), "chains:")
	assert.Contains(t, errw.String(), string(IconError))
}

func sampleTable() Table {
	t := Table{Title: "Chains", Headers: []string{"chain", "ess", "rhat"}}
	t.AddRow(Plain("0"), Plain("812"), Cell{Text: "1.002", Status: StatusOK})
	t.AddRow(Plain("10"), Plain("7"), Cell{Text: "1.4", Status: StatusWarning})
	return t
}

func TestTable_RenderMachine(t *testing.T) {
	got := sampleTable().Render(ModeMachine)
	assert.Equal(t, "chain\tess\trhat\n0\t812\t1.002\n10\t7\t1.4\n", got)
}

func TestTable_RenderRich(t *testing.T) {
	got := sampleTable().Render(ModeRich)
	assert.Contains(t, got, "Chains")
	assert.Contains(t, got, "╭")

	var header string
	for _, line := range strings.Split(got, "\n") {
		if strings.Contains(line, "chain") && strings.Contains(line, "rhat") {
			header = line
		}
	}
	require.NotEmpty(t, header)
	assert.Contains(t, header, "chain  ess  rhat ")
}

func TestTable_ColumnWidths(t *testing.T) {
	assert.Equal(t, []int{5, 3, 5}, sampleTable().columnWidths())
	assert.Equal(t, "ab  ", pad("ab", 4))
	assert.Equal(t, "abcd", pad("abcd", 2))
}
