package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/internal/cleanup"
)

func TestRun_RejectsMemoryDatabase(t *testing.T) {
	t.Setenv("STORAGE_DIR", filepath.Join(t.TempDir(), "media"))
	t.Setenv("DB_DRIVER", "memory")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "--dry-run"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER=postgres")
}

func TestRun_RejectsArguments(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "extra"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestPrintReport(t *testing.T) {
	report := cleanup.Report{
		Targets: []cleanup.TargetReport{
			{Name: "photo.file", Orphans: []string{"photos/photo/a.jpg", "photos/photo/b.jpg"}, Deleted: 1, Failed: 1},
			{Name: "thumbnail.file", Orphans: []string{}},
		},
		Deleted: 1,
		Failed:  1,
	}

	var text bytes.Buffer
	require.NoError(t, printReport(&text, report, false))
	assert.Equal(t, "photo.file: 2 orphaned, 1 deleted, 1 failed\n"+
		"thumbnail.file: 0 orphaned, 0 deleted, 0 failed\n"+
		"total: 1 deleted, 1 failed\n", text.String())

	var out bytes.Buffer
	require.NoError(t, printReport(&out, report, true))
	var decoded cleanup.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, report, decoded)
}
