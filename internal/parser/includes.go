package parser

import "strings"

// RewriteIncludes applies transforms in order to the path of every
// directive line (`#include "path"` or `#include <path>`). Only the first
// occurrence of the match token inside the path is replaced, so a later
// transform sees the output of the earlier ones.
func RewriteIncludes(code string, transforms []IncludeTransformation) string {
	if len(transforms) == 0 || code == "" {
		return code
	}

	lines := strings.Split(code, "\n")
	for _, t := range transforms {
		if t.Match == "" {
			continue
		}
		for i, l := range lines {
			lines[i] = rewriteDirective(l, t)
		}
	}
	return strings.Join(lines, "\n")
}

func rewriteDirective(line string, t IncludeTransformation) string {
	start, end, ok := directivePath(line)
	if !ok {
		return line
	}
	path := line[start:end]
	idx := strings.Index(path, t.Match)
	if idx < 0 {
		return line
	}
	return line[:start] + path[:idx] + t.Replacement + path[idx+len(t.Match):] + line[end:]
}

// directivePath returns the bounds of the delimited path of a '#' directive
func directivePath(line string) (start, end int, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "#") {
		return 0, 0, false
	}
	offset := len(line) - len(trimmed)

	open := strings.IndexAny(trimmed, `"<`)
	if open < 0 {
		return 0, 0, false
	}
	closer := byte('"')
	if trimmed[open] == '<' {
		closer = '>'
	}
	length := strings.IndexByte(trimmed[open+1:], closer)
	if length < 0 {
		return 0, 0, false
	}

	start = offset + open + 1
	return start, start + length, true
}

// IncludePath returns the delimited path of a directive line such as
// `#include <iostream>`, and false for any other line
func IncludePath(line string) (string, bool) {
	start, end, ok := directivePath(line)
	if !ok {
		return "", false
	}
	return line[start:end], true
}
