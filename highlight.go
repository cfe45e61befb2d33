package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"zed/zmachine"
)

var highlightStyle = lipgloss.NewStyle().Bold(true)

// newNameHighlighter styles every object short name appearing in narrative
// text. Names are pulled once through the read-only inspection view; very
// short names are skipped to avoid lighting up words like "it".
func newNameHighlighter(inspector zmachine.Inspector) *strings.Replacer {
	seen := make(map[string]bool)
	var pairs []string

	for objId := uint16(1); objId <= inspector.ObjectCount(); objId++ {
		name := inspector.ObjectName(objId)
		if len(name) < 4 || seen[name] {
			continue
		}
		seen[name] = true
		pairs = append(pairs, name, highlightStyle.Render(name))
	}

	return strings.NewReplacer(pairs...)
}
