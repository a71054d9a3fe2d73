package bitelog

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	db     string
	config string
	dir    string
}

func newCLIEnv(t *testing.T) cliEnv {
	dir := t.TempDir()
	return cliEnv{
		db:     filepath.Join(dir, "bitelog.db"),
		config: filepath.Join(dir, "config.yaml"),
		dir:    dir,
	}
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--db", e.db, "--config", e.config}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func (e cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "bitelog %v: %s", args, out)
	return out
}

func TestRootHelp(t *testing.T) {
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--help"})

	require.NoError(t, rootCmd.Execute())
	assert.NotZero(t, buf.Len())
}

func TestInitCommandIdempotent(t *testing.T) {
	env := newCLIEnv(t)
	for i := 0; i < 2; i++ {
		out := env.mustRun(t, "init")
		assert.Contains(t, out, "Initialized bitelog database at "+env.db)
	}
}

func TestConfigSetAndGet(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "config", "set", "--goal-calories", "2000", "--import-mode", "atomic")
	out := env.mustRun(t, "config", "get")
	assert.Contains(t, out, "goals.calories\t2000")
	assert.Contains(t, out, "import.mode\tatomic")

	_, err := env.run(t, "config", "set", "--import-mode", "bulk")
	assert.Error(t, err)
}

func TestCatalogLogExportImportFlow(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "init")

	out := env.mustRun(t, "catalog", "add", "--brand", "Quaker", "--product", "Oats",
		"--portion-size", "40", "--portion-unit", "g",
		"--calories", "150", "--protein", "5", "--fat", "3", "--net-carbs", "23", "--fiber", "4")
	assert.Contains(t, out, "Added catalog entry 1")

	_, err := env.run(t, "catalog", "add", "--brand", "quaker", "--product", "OATS",
		"--portion-size", "40", "--portion-unit", "g",
		"--calories", "150", "--protein", "5", "--fat", "3", "--net-carbs", "23", "--fiber", "4")
	assert.Error(t, err, "duplicate catalog entry")

	out = env.mustRun(t, "log", "add", "--meal", "breakfast", "--catalog", "1", "--servings", "2",
		"--date", "2026-03-01", "--time", "08:00")
	assert.Contains(t, out, "Logged entry 1 (300 kcal)")

	out = env.mustRun(t, "catalog", "list", "--query", "oat")
	assert.Contains(t, out, "Quaker\tOats")
	assert.Regexp(t, `\t1\t\d{4}-\d{2}-\d{2}`, out)

	out = env.mustRun(t, "log", "list", "--date", "2026-03-01")
	assert.Contains(t, out, "linked:1")

	out = env.mustRun(t, "catalog", "delete", "1")
	assert.Contains(t, out, "detached 1 log entries")

	out = env.mustRun(t, "log", "list", "--date", "2026-03-01")
	assert.Contains(t, out, "detached")
	assert.Contains(t, out, "\t300\t")

	exported := filepath.Join(env.dir, "log.csv")
	out = env.mustRun(t, "export", "--out", exported)
	assert.Contains(t, out, "Exported 1 entries")
	raw, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "2026-03-01,breakfast,Quaker,Oats,150,27,4,3,5,2,g")

	out = env.mustRun(t, "import", "--in", exported, "--mode", "atomic")
	m := regexp.MustCompile(`Imported 1 rows \(batch ([0-9a-f-]+)\)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)

	out = env.mustRun(t, "log", "summary", "--date", "2026-03-01")
	assert.Contains(t, out, "total\t2\t600\t")

	out = env.mustRun(t, "undo-import", m[1])
	assert.Contains(t, out, "Removed 1 entries")

	env.mustRun(t, "doctor")
}

func TestBackupCommands(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "init")
	dir := filepath.Join(env.dir, "backups")

	out := env.mustRun(t, "backup", "list")
	assert.Contains(t, out, "No snapshots in "+dir)

	out = env.mustRun(t, "backup", "create")
	m := regexp.MustCompile(`Snapshot (\S+bitelog-\d{8}-\d{6}\.db) \(\d+ bytes, sha256 [0-9a-f]{64}\)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	assert.Equal(t, dir, filepath.Dir(m[1]))

	out = env.mustRun(t, "backup", "list")
	assert.Contains(t, out, "TAKEN\tBYTES\tSHA256\tPATH")
	assert.Contains(t, out, "\t"+m[1])

	_, err := env.run(t, "backup", "restore")
	assert.Error(t, err, "snapshot argument is required")

	_, err = env.run(t, "backup", "restore", m[1])
	assert.Error(t, err, "existing database needs --force")

	out = env.mustRun(t, "backup", "restore", m[1], "--force")
	assert.Contains(t, out, "now matches snapshot "+m[1])
}

func TestCatalogLookupSave(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": 1, "product": {"code": "42", "product_name": "Skyr", "brands": "Siggi's",
  "serving_quantity": 150, "nutriments": {"energy-kcal_serving": 100, "proteins_serving": 17, "carbohydrates_serving": 6, "fat_serving": 0}}}`))
	}))
	defer ts.Close()

	env := newCLIEnv(t)
	out := env.mustRun(t, "catalog", "lookup", "42", "--save", "--base-url", ts.URL)
	assert.Contains(t, out, "42\tSiggi's\tSkyr\t150 g\t100")
	assert.Contains(t, out, "Added catalog entry 1")

	out = env.mustRun(t, "catalog", "lookup", "42", "--save", "--base-url", ts.URL)
	assert.Contains(t, out, "Reused catalog entry 1")
}
