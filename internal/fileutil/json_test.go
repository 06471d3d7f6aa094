package fileutil

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/lepinkainen/librarylookup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDataset struct {
	GeneratedAt string   `json:"generated_at"`
	Books       []string `json:"books"`
}

func TestWriteJSONFile_NewFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	filePath := env.Path("out", "books.json")

	written, err := WriteJSONFile(testDataset{GeneratedAt: "now", Books: []string{"Cold Earth", "Salt & Stone"}}, filePath, true)
	require.NoError(t, err)
	assert.True(t, written)

	content := string(env.ReadFile("out/books.json"))
	assert.Equal(t, "{\n  \"generated_at\": \"now\",\n  \"books\": [\n    \"Cold Earth\",\n    \"Salt & Stone\"\n  ]\n}\n", content)

	var result testDataset
	require.NoError(t, json.Unmarshal([]byte(content), &result))
	assert.Len(t, result.Books, 2)
}

func TestWriteJSONFile_OverwriteFalse(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("books.json", `{"books": []}`)

	written, err := WriteJSONFile(testDataset{Books: []string{"x"}}, env.Path("books.json"), false)
	require.NoError(t, err)
	assert.False(t, written)
	assert.JSONEq(t, `{"books": []}`, string(env.ReadFile("books.json")))
}

func TestWriteJSONFile_OverwriteTrue(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("books.json", `{"books": []}`)

	written, err := WriteJSONFile(testDataset{Books: []string{"x"}}, env.Path("books.json"), true)
	require.NoError(t, err)
	assert.True(t, written)
	assert.JSONEq(t, `{"generated_at": "", "books": ["x"]}`, string(env.ReadFile("books.json")))
}

func TestWriteJSONFile_InvalidData(t *testing.T) {
	env := testutil.NewTestEnv(t)
	filePath := filepath.Join(env.RootDir(), "bad.json")

	written, err := WriteJSONFile(map[string]any{"fn": func() {}}, filePath, true)
	require.Error(t, err)
	assert.False(t, written)
	assert.False(t, FileExists(filePath))
}
