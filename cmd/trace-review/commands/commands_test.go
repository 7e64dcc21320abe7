package commands

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/api"
	"github.com/banshee-data/trace.review/internal/httputil"
	"github.com/banshee-data/trace.review/internal/monitoring"
	"github.com/banshee-data/trace.review/internal/printer"
	"github.com/banshee-data/trace.review/internal/review"
	"github.com/banshee-data/trace.review/internal/samples"
	"github.com/banshee-data/trace.review/internal/slots"
	"github.com/banshee-data/trace.review/internal/testutil"
)

func init() {
	color.NoColor = true
	monitoring.SetLogger(nil)
}

type result struct {
	stdout string
	stderr string
	err    error
}

func runApp(t *testing.T, a *app, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	a.out = &printer.Printer{Out: &out, Err: &errOut}
	if a.in == nil {
		a.in = strings.NewReader("")
	}
	root := newRootCmd(a)
	root.SetArgs(append([]string{"--quiet"}, args...))
	err := root.Execute()
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	return runApp(t, &app{in: strings.NewReader(stdin)}, args...)
}

func fileBackend(dir string) []string {
	return []string{"--backend", "file", "--slot-dir", dir}
}

func TestLabel_PersistsOnExit(t *testing.T) {
	dir := t.TempDir()
	batch := testutil.WriteBatch(t, dir, "site-a.bin", 2)
	slotDir := filepath.Join(dir, "slots")

	// stage pass, change to fail and wet, confirm, then quit
	r := run(t, "h\nkm\n\nq\n", append(fileBackend(slotDir), "label", batch)...)
	require.NoError(t, r.err, r.stderr)

	assert.Contains(t, r.stdout, "[1/2] 0000000000000001")
	assert.Contains(t, r.stdout, "staged:    Fail (wet)")
	assert.Contains(t, r.stdout, "[2/2] 0000000000000002")
	assert.Contains(t, r.stdout, "Saved; 1 of 2 samples in this batch annotated")

	data, err := os.ReadFile(filepath.Join(slotDir, "annotations.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"0000000000000001":{"status":"fail","is_dry":false,"hash":"0000000000000001"}}`, string(data))
}

func TestLabel_ResumesFromStore(t *testing.T) {
	dir := t.TempDir()
	batch := testutil.WriteBatch(t, dir, "batch.bin", 3)
	slotDir := filepath.Join(dir, "slots")

	r := run(t, "ln\nq\n", append(fileBackend(slotDir), "label", batch)...)
	require.NoError(t, r.err, r.stderr)

	// a second session sees the earlier annotation as committed
	r = run(t, "0\nq\n", append(fileBackend(slotDir), "label", batch)...)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "committed: Checksum (dry)")
	assert.Contains(t, r.stdout, "Saved; 1 of 3")
}

func TestLabel_Warnings(t *testing.T) {
	dir := t.TempDir()
	batch := testutil.WriteBatch(t, dir, "batch.bin", 1)

	r := run(t, "\nz\n?\n", "--backend", "memory", "label", batch)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stderr, "Choose a label before confirming")
	assert.Contains(t, r.stderr, `Unknown key "z"`)
	assert.Contains(t, r.stdout, review.KeyHelp)
}

func TestLabel_EmptyBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, samples.RecordSize-1), 0o644))

	r := run(t, "h\n\nq\n", "--backend", "memory", "label", path)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stderr, "holds no complete")
	assert.Contains(t, r.stdout, "no batch loaded")
}

func TestLabel_MissingFile(t *testing.T) {
	r := run(t, "", "--backend", "memory", "label", filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, r.err)
	assert.Equal(t, "Failed to open batch file", r.err.Error())
}

func TestLabel_MalformedStore(t *testing.T) {
	dir := t.TempDir()
	batch := testutil.WriteBatch(t, dir, "batch.bin", 1)
	slotDir := filepath.Join(dir, "slots")
	require.NoError(t, os.MkdirAll(slotDir, 0o755))
	slotPath := filepath.Join(slotDir, "annotations.json")
	require.NoError(t, os.WriteFile(slotPath, []byte("{broken"), 0o644))

	r := run(t, "q\n", append(fileBackend(slotDir), "label", batch)...)
	require.Error(t, r.err)
	assert.Equal(t, "Annotation store is malformed", r.err.Error())
	assert.Contains(t, r.stderr, "--reset-malformed-store")

	data, err := os.ReadFile(slotPath)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data), "malformed content must not be overwritten")

	r = run(t, "q\n", append(fileBackend(slotDir), "--reset-malformed-store", "label", batch)...)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stderr, "was malformed")

	backups, err := filepath.Glob(filepath.Join(slotDir, "annotations.corrupt-*.json"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	data, err = os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))

	data, err = os.ReadFile(slotPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestAnnotationsReset(t *testing.T) {
	dir := t.TempDir()
	slotDir := filepath.Join(dir, "slots")
	require.NoError(t, os.MkdirAll(slotDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(slotDir, "annotations.json"), []byte(`[]`), 0o644))

	r := run(t, "", append(fileBackend(slotDir), "annotations")...)
	require.Error(t, r.err)

	r = run(t, "", append(fileBackend(slotDir), "annotations", "reset")...)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Malformed content saved to")

	r = run(t, "", append(fileBackend(slotDir), "annotations")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "no annotations\n", r.stdout)

	r = run(t, "", append(fileBackend(slotDir), "annotations", "reset")...)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "nothing to reset")
}

func TestAnnotationsList(t *testing.T) {
	dir := t.TempDir()
	slotDir := filepath.Join(dir, "slots")
	require.NoError(t, os.MkdirAll(slotDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(slotDir, "annotations.json"),
		[]byte(`{"bb":{"status":"observe","is_dry":false},"aa":{"status":"pass","is_dry":true}}`), 0o644))

	r := run(t, "", append(fileBackend(slotDir), "annotations")...)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "aa  Pass      dry\nbb  Observe   wet\n", r.stdout)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	batch := testutil.WriteBatch(t, dir, "site a.bin", 2)
	slotDir := filepath.Join(dir, "slots")
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(slotDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(slotDir, "annotations.json"), []byte(
		`{"0000000000000002":{"status":"observe","is_dry":true},"ffffffffffffffff":{"status":"fail","is_dry":false}}`), 0o644))

	r := run(t, "", append(fileBackend(slotDir), "export", batch, "--out", outDir)...)
	require.NoError(t, r.err, r.stderr)

	data, err := os.ReadFile(filepath.Join(outDir, "site_a.bin_annotations.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"0000000000000002":{"status":"observe","is_dry":true,"hash":"0000000000000002"}}`, string(data))
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	batch := testutil.WriteBatch(t, dir, "batch.bin", 2)

	r := run(t, "", "inspect", batch)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "2 samples")
	assert.Contains(t, r.stdout, "HASH")
	assert.Contains(t, r.stdout, "0000000000000002")
}

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "review.db")

	r := run(t, "", "--db-path", dbPath, "migrate", "status")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Current version: 0")
	assert.Contains(t, r.stderr, "pending")

	r = run(t, "", "--db-path", dbPath, "migrate", "up")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Current version: 1")

	r = run(t, "n\n", "--db-path", dbPath, "migrate", "force", "0")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Aborted")

	r = run(t, "", "--db-path", dbPath, "migrate", "force", "abc")
	require.Error(t, r.err)
}

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	batch := testutil.WriteBatch(t, dir, "batch.bin", 1)
	dbPath := filepath.Join(dir, "review.db")

	r := run(t, "hn\nq\n", "--db-path", dbPath, "label", batch)
	require.NoError(t, r.err, r.stderr)

	r = run(t, "", "--db-path", dbPath, "annotations")
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "0000000000000001  Pass      dry\n", r.stdout)
}

func TestRemote(t *testing.T) {
	dir := t.TempDir()
	batch := testutil.WriteBatch(t, dir, "remote.bin", 2)
	outDir := filepath.Join(dir, "out")

	mem := slots.NewMemory()
	store := annotations.NewStore(mem, "")
	ctrl := review.NewController(review.ControllerConfig{Store: store})
	handler, err := api.NewServer(api.Config{Controller: ctrl, Logger: log.New(io.Discard, "", 0)}).Handler()
	require.NoError(t, err)
	hc := &httputil.HandlerClient{Handler: handler}

	remote := func(args ...string) result {
		return runApp(t, &app{httpClient: hc}, append([]string{"remote", "--url", "http://review.test"}, args...)...)
	}

	r := remote("upload", batch)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Loaded 2 samples")

	ctrl.Apply(review.SetLabel{Status: annotations.StatusPass})
	ctrl.Apply(review.Confirm{})

	r = remote("status")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Annotations:  1")
	assert.Contains(t, r.stdout, "Batch:        remote.bin")

	r = remote("flush")
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, 1, mem.Writes())

	r = remote("export", "--out", outDir)
	require.NoError(t, r.err, r.stderr)
	data, err := os.ReadFile(filepath.Join(outDir, "remote.bin_annotations.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"0000000000000001":{"status":"pass","is_dry":true,"hash":"0000000000000001"}}`, string(data))

	r = remote("reset")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "nothing to reset")
}

func TestRemote_ServerDown(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddErrorResponse(io.ErrUnexpectedEOF)
	r := runApp(t, &app{httpClient: mock}, "remote", "status")
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, "Check the server is running at http://localhost:8080")
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()

	r := run(t, "", "--config", filepath.Join(dir, "missing.yaml"), "annotations")
	require.Error(t, r.err)
	assert.Equal(t, "Failed to load configuration", r.err.Error())

	r = run(t, "", "--backend", "tape", "annotations")
	require.Error(t, r.err)
	assert.Equal(t, "Invalid configuration", r.err.Error())
}

func TestConfigFile_FlagOverrides(t *testing.T) {
	dir := t.TempDir()
	slotDir := filepath.Join(dir, "slots")
	cfgPath := filepath.Join(dir, "review.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("backend: memory\nslot_dir: "+slotDir+"\n"), 0o644))
	batch := testutil.WriteBatch(t, dir, "batch.bin", 1)

	// the config selects memory; the flag switches to the file backend
	r := run(t, "hn\nq\n", "--config", cfgPath, "--backend", "file", "label", batch)
	require.NoError(t, r.err, r.stderr)
	_, err := os.Stat(filepath.Join(slotDir, "annotations.json"))
	assert.NoError(t, err)
}

func TestSplitKeys(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", []string{" "}},
		{"   ", []string{" "}},
		{"h", []string{"h"}},
		{"h m n", []string{"h", "m", "n"}},
		{"42", []string{"42"}},
		{"-3", []string{"-3"}},
		{"space", []string{"space"}},
		{"quit", []string{"quit"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitKeys(tt.line), "line %q", tt.line)
	}
}

func TestVersion(t *testing.T) {
	r := run(t, "", "--version")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "trace-review version dev")
}
