package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gslide2media/gslide2media/internal/meta"
	"github.com/gslide2media/gslide2media/internal/options"
)

// runCommand executes the CLI against a fresh command tree, capturing stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedStore(t *testing.T, dir string, labels ...string) *meta.Store {
	t.Helper()
	store, err := meta.Open(meta.Config{Dir: dir, Logger: buildLogger()})
	require.NoError(t, err)
	for _, label := range labels {
		o := options.New()
		o.PresentationIDs = []string{"P-" + label}
		o.Formats = []options.ExportFormat{options.FormatSVG}
		o.DownloadDirectory = "/out"
		if label != "unnamed" {
			o.SetLabel(label)
		}
		require.NoError(t, o.Normalize())
		require.NoError(t, store.Add(o))
	}
	return store
}

func TestParseCustom(t *testing.T) {
	got, err := parseCustom([]string{"P1=s1,s2", "P2=s9"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "P1", got[0].PresentationID)
	assert.Equal(t, []string{"s1", "s2"}, got[0].SlideIDs)
	assert.Equal(t, []string{"s9"}, got[1].SlideIDs)

	for _, bad := range []string{"P1", "=s1", "P1="} {
		_, err := parseCustom([]string{bad})
		assert.Error(t, err, "spec %q should be rejected", bad)
	}
}

func TestOptionsFromFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--presentation", "P1",
		"--folder", "F1",
		"--slides", "P2=s1,s2",
		"--format", "svg,pdf",
		"--dpi", "300",
		"--set-label", "quarterly",
		"--download-dir", "/tmp/out",
		"--depth", "3",
		"--workers", "2",
	}))

	o, err := optionsFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, o.PresentationIDs)
	assert.Equal(t, []string{"F1"}, o.FolderIDs)
	require.Len(t, o.Custom, 1)
	assert.Equal(t, []options.ExportFormat{options.FormatSVG, options.FormatPDF}, o.Formats)
	assert.Equal(t, 300, o.DPI)
	assert.Equal(t, "quarterly", o.Label)
	assert.Equal(t, "/tmp/out", o.DownloadDirectory)
	assert.Equal(t, 3, o.MaxWalkDepth)
	assert.Equal(t, 2, o.Workers)
	assert.Equal(t, options.SourceCLI, o.Source)
}

func TestOptionsFromFlagsTotalDurationClearsPerSlideDefault(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--presentation", "P1",
		"--format", "mp4",
		"--total-duration", "60",
	}))

	o, err := optionsFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, 60, o.MP4TotalDurationSecs)
	assert.Zero(t, o.MP4SlideDurationSecs)
}

func TestOptionsFromFlagsRejectsUnknownFormat(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--presentation", "P1",
		"--format", "gif",
	}))

	_, err := optionsFromFlags(cmd)
	assert.ErrorIs(t, err, options.ErrUnknownFormat)
}

func TestHistoryList(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, "quarterly", "unnamed")

	out, err := runCommand(t, "history", "list", "--store-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Labeled:")
	assert.Contains(t, out, "[quarterly]")
	assert.Contains(t, out, "Unlabeled:")
}

func TestHistoryListEmpty(t *testing.T) {
	out, err := runCommand(t, "history", "list", "--store-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "history is empty")
}

func TestHistoryClearRequiresForceWithoutTerminal(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, "quarterly")

	_, err := runCommand(t, "history", "clear", "--store-dir", dir)
	assert.ErrorContains(t, err, "--force")
}

func TestHistoryClearForce(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, "quarterly")

	out, err := runCommand(t, "history", "clear", "--force", "--store-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "history cleared")

	store, err := meta.Open(meta.Config{Dir: dir, Logger: buildLogger()})
	require.NoError(t, err)
	assert.Empty(t, store.History())
}

func TestHistoryClearAlreadyEmpty(t *testing.T) {
	out, err := runCommand(t, "history", "clear", "--force", "--store-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "already empty")
}

func TestHistoryRemoveByLabel(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, "quarterly", "weekly")

	_, err := runCommand(t, "history", "remove", "--label", "quarterly", "--store-dir", dir)
	require.NoError(t, err)

	store, err := meta.Open(meta.Config{Dir: dir, Logger: buildLogger()})
	require.NoError(t, err)
	named, _ := store.Collate()
	require.Len(t, named, 1)
	assert.Equal(t, "weekly", named[0].Label)
}

func TestHistoryRemoveUnknownLabel(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, "quarterly")

	_, err := runCommand(t, "history", "remove", "--label", "nope", "--store-dir", dir)
	assert.ErrorIs(t, err, meta.ErrNoMatchingEntry)
}

func TestAuthImport(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(t.TempDir(), "client_secret.json")
	require.NoError(t, os.WriteFile(secretPath, []byte(`{"installed":{"client_id":"x"}}`), 0o600))

	out, err := runCommand(t, "auth", "import", secretPath, "--store-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "imported")

	// The source file is the caller's to delete.
	_, err = os.Stat(secretPath)
	assert.NoError(t, err)

	store, err := meta.Open(meta.Config{Dir: dir, Logger: buildLogger()})
	require.NoError(t, err)
	assert.NotEmpty(t, store.Secret())
}

func TestAuthResetStoreRequiresForce(t *testing.T) {
	_, err := runCommand(t, "auth", "reset-store", "--store-dir", t.TempDir())
	assert.ErrorContains(t, err, "--force")
}

func TestAuthResetStoreRecoversCorruptMetadata(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir, "quarterly")

	// Corrupt the metadata file so a normal open fails.
	store, err := meta.Open(meta.Config{Dir: dir, Logger: buildLogger()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.MetadataPath(), []byte("garbage"), 0o600))
	_, err = meta.Open(meta.Config{Dir: dir, Logger: buildLogger()})
	require.ErrorIs(t, err, meta.ErrStoreUnreadable)

	_, err = runCommand(t, "auth", "reset-store", "--force", "--store-dir", dir)
	require.NoError(t, err)

	reopened, err := meta.Open(meta.Config{Dir: dir, Logger: buildLogger()})
	require.NoError(t, err)
	assert.Empty(t, reopened.History())
}
