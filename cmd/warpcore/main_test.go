package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunTickPrintsDigestsAndReceipt(t *testing.T) {
	cmd := newTickCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	require.NoError(t, runTick(cmd, t.TempDir(), false, ""))

	got := out.String()
	require.Contains(t, got, "plan_digest:")
	require.Contains(t, got, "commit_hash:")
	require.Contains(t, got, "receipt[0]:")
}

func TestRunTickHonorsConfiguredWorkerCount(t *testing.T) {
	t.Setenv("WARPCORE_WORKER_COUNT", "3")

	cmd := newTickCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	require.NoError(t, runTick(cmd, t.TempDir(), false, ""))

	require.Contains(t, out.String(), "workers:         3")
}

func TestRunTickDefaultWorkerCountIsOne(t *testing.T) {
	cmd := newTickCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	require.NoError(t, runTick(cmd, t.TempDir(), false, ""))

	require.Contains(t, out.String(), "workers:         1")
}

func TestRunTickPersistThenInspectRoundTrips(t *testing.T) {
	dir := t.TempDir()

	tickCmd := newTickCmd()
	tickOut := &bytes.Buffer{}
	tickCmd.SetOut(tickOut)
	require.NoError(t, runTick(tickCmd, dir, true, ""))

	commitHash := extractCommitHash(t, tickOut.String())

	inspectCmd := newInspectCmd()
	inspectOut := &bytes.Buffer{}
	inspectCmd.SetOut(inspectOut)
	require.NoError(t, runInspect(inspectCmd, dir, commitHash, ""))

	got := inspectOut.String()
	require.Contains(t, got, "schema_hash:")
	require.Contains(t, got, "warps:       1")
	require.Contains(t, got, "patch ops:")
}

func TestRunTickPersistSealedRequiresMatchingSecretToInspect(t *testing.T) {
	dir := t.TempDir()

	tickCmd := newTickCmd()
	tickOut := &bytes.Buffer{}
	tickCmd.SetOut(tickOut)
	require.NoError(t, runTick(tickCmd, dir, true, "correct-horse"))
	require.Contains(t, tickOut.String(), "patch sealed:")

	commitHash := extractCommitHash(t, tickOut.String())

	badInspect := newInspectCmd()
	require.Error(t, runInspect(badInspect, dir, commitHash, "wrong-secret"))

	goodInspect := newInspectCmd()
	goodOut := &bytes.Buffer{}
	goodInspect.SetOut(goodOut)
	require.NoError(t, runInspect(goodInspect, dir, commitHash, "correct-horse"))
	require.Contains(t, goodOut.String(), "patch ops:")
}

func TestRunInspectRejectsMalformedCommitHash(t *testing.T) {
	cmd := newInspectCmd()
	require.Error(t, runInspect(cmd, t.TempDir(), "not-hex", ""))
}

func extractCommitHash(t *testing.T, tickOutput string) string {
	t.Helper()
	for _, line := range strings.Split(tickOutput, "\n") {
		if strings.HasPrefix(line, "commit_hash:") {
			fields := strings.Fields(line)
			require.Len(t, fields, 2)
			return fields[1]
		}
	}
	t.Fatal("commit_hash line not found in tick output")
	return ""
}

func TestBlobDirIsUsable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "blobs")
	cmd := newTickCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	require.NoError(t, runTick(cmd, dir, true, ""))
}
