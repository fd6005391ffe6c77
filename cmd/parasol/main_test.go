package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norbert12x/parasol/pkg/parasol/docimport"
	"github.com/norbert12x/parasol/pkg/parasol/job"
	"github.com/norbert12x/parasol/pkg/parasol/store/sqlite"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "parasol.db")
	t.Setenv("PARASOL_DB_DRIVER", "sqlite")
	t.Setenv("PARASOL_DB_DSN", dbPath)
	t.Setenv("PARASOL_BATCH_INTERVAL", "1ms")
	t.Setenv("PARASOL_PAGE_SIZE", "2")
	t.Setenv("PARASOL_LOG_LEVEL", "error")
	return dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "classify", "Prowadzimy działalność w zakresie edukacja oraz ekologia")
	require.NoError(t, err)

	var cats []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cats))
	require.Len(t, cats, 2)
	assert.Equal(t, "Edukacja", cats[0].Name)
	assert.Equal(t, "Ekologia", cats[1].Name)
}

func TestCategoriesCommandSync(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := execute(t, "categories", "--sync")
	require.NoError(t, err)

	var rows []categoryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.NotEmpty(t, rows)
	assert.True(t, rows[len(rows)-1].Fallback)

	st, err := sqlite.OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	defer st.Close()
	cats, err := st.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, len(rows))
}

func TestExtractCommand(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "0000123456.json")
	doc := `{"odpis":{"dane":{
	  "dzial1":{"danePodmiotu":{"nazwa":"Fundacja X"}},
	  "dzial3":{"celDzialaniaOrganizacji":{"celDzialania":"Prowadzimy działalność w zakresie edukacja oraz ekologia"}}
	}}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	out, err := execute(t, "extract", path)
	require.NoError(t, err)

	var got []extractOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "0000123456", got[0].KRS)
	assert.Equal(t, "Fundacja X", got[0].Name)
	assert.Empty(t, got[0].Address)
	assert.Equal(t, []string{"Edukacja", "Ekologia"}, got[0].Categories)
}

func TestRunCommandWithFeedFile(t *testing.T) {
	dbPath := setupEnv(t)
	feedPath := filepath.Join(t.TempDir(), "feed.jsonl")
	lines := `{"numerKrs":"1","nazwa":"A","adres":{"miejscowosc":"Gdańsk","wojewodztwo":"pomorskie"},"celeDzialania":["edukacja"]}
{"numerKrs":"2","nazwa":"B","adres":{"miejscowosc":"Sopot","wojewodztwo":"pomorskie"},"celeDzialania":["sport"]}
{"numerKrs":"3","nazwa":"C","adres":{"miejscowosc":"Kraków","wojewodztwo":"małopolskie"},"celeDzialania":["kultura"]}
{"numerKrs":"4","nazwa":"D","celeDzialania":[]}
`
	require.NoError(t, os.WriteFile(feedPath, []byte(lines), 0644))

	out, err := execute(t, "run", "--feed-file", feedPath, "--no-geocode")
	require.NoError(t, err)

	var st job.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.False(t, st.Running)
	assert.Equal(t, 3, st.Imported)
	assert.Equal(t, 1, st.Skipped)
	assert.Zero(t, st.Errors)

	s, err := sqlite.OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	defer s.Close()
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Organizations)
	assert.EqualValues(t, 3, stats.Addresses)
	assert.Zero(t, stats.Coordinates)
}

func TestRunCommandRegion(t *testing.T) {
	setupEnv(t)
	feedPath := filepath.Join(t.TempDir(), "feed.jsonl")
	lines := `{"numerKrs":"1","adres":{"wojewodztwo":"pomorskie"},"celeDzialania":["edukacja"]}
{"numerKrs":"2","adres":{"wojewodztwo":"małopolskie"},"celeDzialania":["sport"]}
`
	require.NoError(t, os.WriteFile(feedPath, []byte(lines), 0644))

	out, err := execute(t, "run", "--feed-file", feedPath, "--no-geocode", "--region", "Pomorskie")
	require.NoError(t, err)

	var st job.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 1, st.Imported)
	assert.Equal(t, "Pomorskie", st.Region)
}

func TestRunCommandWithoutSource(t *testing.T) {
	setupEnv(t)
	t.Setenv("PARASOL_FEED_URL", "")

	_, err := execute(t, "run", "--no-geocode")
	require.Error(t, err)
}

func TestImportDocsCommand(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	doc := `{"dane":{"dzial1":{"danePodmiotu":{"nazwa":"Fundacja X"}},"dzial3":{"celDzialaniaOrganizacji":{"celDzialania":"ekologia"}}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.json"), []byte(doc), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.json"), []byte(`{}`), 0644))

	out, err := execute(t, "import-docs", "--no-geocode", dir)
	require.NoError(t, err)

	var res docimport.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, docimport.Result{Processed: 2, Imported: 1, Skipped: 1}, res)
}

func TestInvalidSettings(t *testing.T) {
	setupEnv(t)
	t.Setenv("PARASOL_DB_DRIVER", "mysql")

	_, err := execute(t, "categories")
	require.Error(t, err)
}
