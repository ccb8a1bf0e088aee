package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aceParser() *Parser {
	return New(WithTag("// @ace"))
}

func TestParseEmpty(t *testing.T) {
	res, err := Parse("", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Raw)
	assert.Empty(t, res.Display)
	assert.Empty(t, res.Execute)
	assert.Nil(t, res.Config)
	assert.False(t, res.Executable())
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	defaults := &Configuration{CompilerID: "gcc"}
	res, err := Parse("", defaults)
	require.NoError(t, err)
	require.NotNil(t, res.Config)
	assert.Equal(t, "gcc", res.Config.CompilerID)
	assert.NotSame(t, defaults, res.Config)
}

func TestParseEndToEnd(t *testing.T) {
	text := `// @ace::CE={
// "compiler_id": "clang1400"
// }
#include "csl/foo.h"
int main(){}
// @ace::show::line`

	res, err := aceParser().Parse(text, nil)
	require.NoError(t, err)

	require.NotNil(t, res.Config)
	assert.Equal(t, &Configuration{CompilerID: "clang1400"}, res.Config)
	assert.Equal(t, "#include \"csl/foo.h\"\nint main(){}", res.Execute)
	assert.Equal(t, "int main(){}", res.Display)
	assert.Equal(t, text, res.Raw)
	assert.True(t, res.Executable())
	assert.Empty(t, res.Warnings)
}

func TestParseConfigBlock(t *testing.T) {
	text := `// @awesome-code-element::CE={
//  "language"            : "c++",
//  "compiler_id"         : "clang1400",
//  "compilation_options" : "-O2 -std=c++20",
//  "libs"                : [ {"id": "fmt", "version": "trunk"} ],
//  "includes_transformation" : [
//     // <documentation> <replacement>
//        [ "csl/",       "https://example.com/includes/csl/" ],
//        [ "toto",       "iostream" ]
//  ],
//  "add_in_doc_execution" : true
//  }
#include <csl/mp.hpp>
#include <toto>
int main() {}
`
	res, err := Parse(text, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Config)

	cfg := res.Config
	assert.Equal(t, "c++", cfg.Language)
	assert.Equal(t, "clang1400", cfg.CompilerID)
	assert.Equal(t, "-O2 -std=c++20", cfg.CompilationOptions)
	assert.Equal(t, []Library{{ID: "fmt", Version: "trunk"}}, cfg.Libs)
	assert.Equal(t, []IncludeTransformation{
		{Match: "csl/", Replacement: "https://example.com/includes/csl/"},
		{Match: "toto", Replacement: "iostream"},
	}, cfg.IncludesTransformation)
	assert.True(t, cfg.InDocExecution())

	assert.Equal(t, "#include <https://example.com/includes/csl/mp.hpp>\n#include <iostream>\nint main() {}\n", res.Execute)
	assert.Equal(t, "#include <csl/mp.hpp>\n#include <toto>\nint main() {}\n", res.Display)
}

func TestParseConfigIsolation(t *testing.T) {
	text := `int a = 0;
    // @ace::CE={
    //   "compiler_id": "gcc",
    //   "compilation_options": "-DX={1}"
    // }
int b = 1;`

	res, err := aceParser().Parse(text, nil)
	require.NoError(t, err)
	for _, out := range []string{res.Display, res.Execute} {
		assert.NotContains(t, out, "::CE=")
		assert.NotContains(t, out, "compiler_id")
		assert.Equal(t, "int a = 0;\nint b = 1;", out)
	}
	assert.Equal(t, "-DX={1}", res.Config.CompilationOptions)
}

func TestParseSingleLineConfig(t *testing.T) {
	res, err := aceParser().Parse("// @ace::CE={\"compiler_id\": \"g132\"}\nint x;", nil)
	require.NoError(t, err)
	assert.Equal(t, "g132", res.Config.CompilerID)
	assert.Equal(t, "int x;", res.Execute)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{
			name: "malformed json",
			text: "int x;\n// @ace::CE={\n// \"compiler_id\": clang\n// }\n",
			line: 2,
		},
		{
			name: "unclosed before code",
			text: "// @ace::CE={\n// \"compiler_id\": \"clang\"\nint main(){}\n",
			line: 1,
		},
		{
			name: "unclosed before end",
			text: "// @ace::CE={\n// \"compiler_id\": \"clang\"",
			line: 1,
		},
		{
			name: "not an object",
			text: "// @ace::CE=[1, 2]\n",
			line: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := aceParser().Parse(tt.text, nil)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrConfigParse))

			var cpe *ConfigParseError
			require.True(t, errors.As(err, &cpe))
			assert.Equal(t, tt.line, cpe.Line)
			assert.Contains(t, err.Error(), "line")
		})
	}
}

func TestParseMultipleConfigBlocks(t *testing.T) {
	text := `// @ace::CE={
// "compiler_id": "gcc", "compilation_options": "-O1"
// }
int x;
// @ace::CE={
// "compiler_id": "clang"
// }`

	res, err := aceParser().Parse(text, nil)
	require.NoError(t, err)
	assert.Equal(t, "clang", res.Config.CompilerID)
	assert.Equal(t, "-O1", res.Config.CompilationOptions)
	assert.Equal(t, "int x;", res.Execute)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], ErrAmbiguousConfig)
}

func TestParseMergePrecedence(t *testing.T) {
	defaults := &Configuration{CompilerID: "a", Libs: []Library{}}
	text := "// @ace::CE={\n// \"compiler_id\": \"b\"\n// }\nint x;"

	res, err := aceParser().Parse(text, defaults)
	require.NoError(t, err)
	assert.Equal(t, "b", res.Config.CompilerID)
	assert.NotNil(t, res.Config.Libs)
	assert.Equal(t, "a", defaults.CompilerID)
}

func TestParseExplicitEmptyOverrides(t *testing.T) {
	t.Run("later block", func(t *testing.T) {
		text := `// @ace::CE={
// "compiler_id": "gcc", "compilation_options": "-O2", "language": "c++"
// }
int x;
// @ace::CE={
// "compilation_options": ""
// }`

		res, err := aceParser().Parse(text, nil)
		require.NoError(t, err)
		assert.Equal(t, "gcc", res.Config.CompilerID)
		assert.Empty(t, res.Config.CompilationOptions)
		assert.Equal(t, "c++", res.Config.Language)
	})

	t.Run("defaults", func(t *testing.T) {
		defaults := &Configuration{CompilerID: "gcc", CompilationOptions: "-O2", Language: "c++", ExecuteStdin: "in"}
		text := "// @ace::CE={\n// \"language\": \"\", \"execute_parameters_stdin\": \"\"\n// }\nint x;"

		res, err := aceParser().Parse(text, defaults)
		require.NoError(t, err)
		assert.Equal(t, &Configuration{CompilerID: "gcc", CompilationOptions: "-O2"}, res.Config)
		assert.Equal(t, "c++", defaults.Language)
	})
}

func TestParseMissingCompilerIDIsLazy(t *testing.T) {
	text := "// @ace::CE={\n// \"language\": \"c++\"\n// }\nint x;"

	res, err := aceParser().Parse(text, nil)
	require.NoError(t, err)
	assert.False(t, res.Executable())
	assert.ErrorIs(t, res.Config.Validate(), ErrMissingCompilerID)
}

func TestParseSkip(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
		warnings int
	}{
		{
			name: "block",
			text: `int a;
// @ace::skip::block::begin
int hidden;
// @ace::skip::line
// @ace::skip::block::end
int b;`,
			expected: "int a;\nint b;",
		},
		{
			name:     "indented block markers",
			text:     "int a;\n  // @ace::skip::block::begin\nint hidden;\n\t// @ace::skip::block::end  \nint b;",
			expected: "int a;\nint b;",
		},
		{
			name:     "line",
			text:     "int a;\nstatic_assert(false); // @ace::skip::line   \nint b;",
			expected: "int a;\nint b;",
		},
		{
			name:     "unterminated block",
			text:     "int a;\n// @ace::skip::block::begin\nint hidden;\nint more;",
			expected: "int a;",
			warnings: 1,
		},
		{
			name:     "nearest end",
			text:     "// @ace::skip::block::begin\nx\n// @ace::skip::block::end\ny\n// @ace::skip::block::end",
			expected: "y\n// @ace::skip::block::end",
		},
		{
			name:     "marker must be alone on its line",
			text:     "int a; // @ace::skip::block::begin\nint b;",
			expected: "int a; // @ace::skip::block::begin\nint b;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := aceParser().Parse(tt.text, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.Execute)
			assert.Equal(t, tt.expected, res.Display)
			assert.Len(t, res.Warnings, tt.warnings)
			for _, w := range res.Warnings {
				assert.ErrorIs(t, w, ErrUnterminatedBlock)
			}
		})
	}
}

func TestParseSkipIdempotent(t *testing.T) {
	p := aceParser()
	text := `#include <vector>
// @ace::skip::block::begin
#include "private.h"
// @ace::skip::block::end
auto v = std::vector{1, 2}; // @ace::skip::line
// @ace::show::block::begin
int main() {}
// @ace::show::block::end
`
	first, err := p.Parse(text, nil)
	require.NoError(t, err)
	assert.NotContains(t, first.Execute, "skip::")

	second, err := p.Parse(first.Execute, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Execute, second.Execute)
	assert.Equal(t, first.Execute, second.Display)
	assert.NotContains(t, second.Execute, "skip::")
}

func TestParseShow(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		display  string
		execute  string
		warnings int
	}{
		{
			name:    "no show markers",
			text:    "int a;\nint b;",
			display: "int a;\nint b;",
			execute: "int a;\nint b;",
		},
		{
			name:    "trailing line marker",
			text:    "int a;\nint b; // @ace::show::line\nint c;",
			display: "int b;",
			execute: "int a;\nint b;\nint c;",
		},
		{
			name:    "block",
			text:    "int a;\n// @ace::show::block::begin\nint b;\nint c;\n// @ace::show::block::end\nint d;",
			display: "int b;\nint c;",
			execute: "int a;\nint b;\nint c;\nint d;",
		},
		{
			name:    "several occurrences in order",
			text:    "int a; // @ace::show::line\nint b;\n// @ace::show::block::begin\nint c;\n// @ace::show::block::end\n  int d; // @ace::show::line",
			display: "int a;\nint c;\n  int d;",
			execute: "int a;\nint b;\nint c;\n  int d;",
		},
		{
			name:    "lone marker shows previous line",
			text:    "int a;\nint b;\n\n// @ace::show::line\nint c;",
			display: "int b;",
			execute: "int a;\nint b;\n\nint c;",
		},
		{
			name:     "lone marker without previous line",
			text:     "// @ace::show::line\nint a;",
			display:  "int a;",
			execute:  "int a;",
			warnings: 1,
		},
		{
			name:     "unterminated block",
			text:     "int a;\n// @ace::show::block::begin\nint b;",
			display:  "int b;",
			execute:  "int a;\nint b;",
			warnings: 1,
		},
		{
			name:    "line marker nested in block",
			text:    "// @ace::show::block::begin\nint a; // @ace::show::line\n// @ace::show::block::end",
			display: "int a;",
			execute: "int a;",
		},
		{
			name:    "skip wins over show",
			text:    "int a;\n// @ace::skip::block::begin\nint b; // @ace::show::line\n// @ace::skip::block::end",
			display: "int a;",
			execute: "int a;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := aceParser().Parse(tt.text, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.display, res.Display)
			assert.Equal(t, tt.execute, res.Execute)
			assert.NotContains(t, res.Execute, "show::")
			assert.Len(t, res.Warnings, tt.warnings)
		})
	}
}

func TestParseIncludeRewriteOrder(t *testing.T) {
	text := `// @ace::CE={
// "compiler_id": "gcc",
// "includes_transformation": [["a", "b"], ["b", "c"]]
// }
#include "a/x.h"`

	res, err := aceParser().Parse(text, nil)
	require.NoError(t, err)
	assert.Equal(t, `#include "c/x.h"`, res.Execute)
	assert.Equal(t, `#include "a/x.h"`, res.Display)
}

func TestParseWindowsLineEndings(t *testing.T) {
	text := "int a;\r\nint b; // @ace::show::line\r\n// @ace::skip::block::begin\r\nx\r\n// @ace::skip::block::end\r\n"
	res, err := aceParser().Parse(text, nil)
	require.NoError(t, err)
	assert.Equal(t, "int b;", res.Display)
	assert.True(t, strings.HasPrefix(res.Execute, "int a;\r\nint b;"))
	assert.NotContains(t, res.Execute, "skip::")
}

func TestCustomCommentMarker(t *testing.T) {
	p := New(WithTag("# @ace"))
	text := "# @ace::CE={\n# \"compiler_id\": \"python311\"\n# }\nprint(1)  # @ace::show::line\nprint(2)"

	res, err := p.Parse(text, nil)
	require.NoError(t, err)
	assert.Equal(t, "# @ace", p.Tag())
	assert.Equal(t, "python311", res.Config.CompilerID)
	assert.Equal(t, "print(1)", res.Display)
	assert.Equal(t, "print(1)\nprint(2)", res.Execute)
}
