// Package htmlcode recovers source code from HTML fragments found in
// documentation pages, where tokens such as <iostream> in
// `#include <iostream>` have been parsed as elements.
package htmlcode

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// markup lists the elements documentation generators wrap code with.
// Any other element is a code token and is written back as text.
var markup = map[atom.Atom]bool{
	atom.A:      true,
	atom.B:      true,
	atom.Code:   true,
	atom.Div:    true,
	atom.Em:     true,
	atom.Font:   true,
	atom.I:      true,
	atom.Mark:   true,
	atom.P:      true,
	atom.Pre:    true,
	atom.S:      true,
	atom.Small:  true,
	atom.Span:   true,
	atom.Strong: true,
	atom.Sub:    true,
	atom.Sup:    true,
	atom.U:      true,
}

// Extract returns the code text of an HTML fragment
func Extract(fragment string) (string, error) {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, n := range nodes {
		writeCode(&b, n)
	}
	return b.String(), nil
}

func writeCode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch {
		case n.DataAtom == atom.Br:
			b.WriteString("\n")
		case !markup[n.DataAtom]:
			b.WriteString("<" + n.Data + ">")
		}
	default:
		// comments, doctypes
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeCode(b, c)
	}
}
