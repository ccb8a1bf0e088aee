package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snippet = `// @ace::CE={
// "compiler_id": "clang1400"
// }
#include "csl/foo.h"
int main(){}
// @ace::show::line`

func execute(t *testing.T, input string, args ...string) string {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestParseCommand(t *testing.T) {
	out := execute(t, snippet, "parse", "--tag", "// @ace", "--execute", "-")
	assert.Equal(t, "#include \"csl/foo.h\"\nint main(){}\n", out)
}

func TestURLCommand(t *testing.T) {
	out := execute(t, snippet, "url", "--tag", "// @ace", "--url", "https://ce.example", "--language", "cpp")
	link := strings.TrimSpace(out)
	prefix := "https://ce.example/clientstate/"
	require.True(t, strings.HasPrefix(link, prefix), link)

	encoded, err := url.QueryUnescape(strings.TrimPrefix(link, prefix))
	require.NoError(t, err)
	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var state struct {
		Sessions []struct {
			Language string `json:"language"`
			Source   string `json:"source"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(data, &state))
	require.Len(t, state.Sessions, 1)
	assert.Equal(t, "#include \"csl/foo.h\"\nint main(){}", state.Sessions[0].Source)
	assert.Equal(t, "c++", state.Sessions[0].Language)
}
