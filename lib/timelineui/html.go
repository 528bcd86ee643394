// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timelineui

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/timeline"
)

// RenderHTML renders grouped items as an HTML fragment. Message bodies
// go through goldmark; raw HTML in bodies is omitted. Only
// options.Location is used.
func RenderHTML(groups []timeline.Group[Item], viewModels ViewModels, options Options) (string, error) {
	options = options.withDefaults()
	var out strings.Builder
	for _, group := range groups {
		switch {
		case group.Kind.MessageLike():
			if err := writeHTMLGroup(&out, group, viewModels, options); err != nil {
				return "", err
			}
		case group.Kind == timeline.KindReaction || group.Kind == timeline.KindRedaction:
		default:
			fmt.Fprintf(&out, "<p class=\"summary\">%s</p>\n", html.EscapeString(summarize(group)))
		}
	}
	return out.String(), nil
}

func writeHTMLGroup(out *strings.Builder, group timeline.Group[Item], viewModels ViewModels, options Options) error {
	var rows strings.Builder
	for _, item := range group.Events {
		if err := writeHTMLRow(&rows, item, viewModels); err != nil {
			return err
		}
	}
	if rows.Len() == 0 {
		return nil
	}

	out.WriteString("<section class=\"group\">\n")
	if !group.Sender.IsZero() {
		stamp := options.timestamp(group.Events[0].Age)
		fmt.Fprintf(out, "<header><span class=\"sender\">%s</span> <time datetime=\"%s\">%s</time></header>\n",
			html.EscapeString(group.Sender.String()),
			stamp.Format(time.RFC3339),
			stamp.Format("2006-01-02 15:04"))
	}
	out.WriteString(rows.String())
	out.WriteString("</section>\n")
	return nil
}

func writeHTMLRow(out *strings.Builder, item Item, viewModels ViewModels) error {
	viewModel, ok := viewModels.ViewModel(item.EventID)
	if !ok {
		if item.Type == ref.EventTypeEncrypted {
			fmt.Fprintf(out, "<article class=\"message encrypted\" id=\"%s\"><em>encrypted message</em></article>\n",
				html.EscapeString(item.EventID.String()))
		}
		return nil
	}
	id := html.EscapeString(viewModel.EventID().String())

	switch viewModel := viewModel.(type) {
	case timeline.TombstoneViewModel:
		fmt.Fprintf(out, "<article class=\"message tombstone\" id=\"%s\"><em>message deleted</em></article>\n", id)

	case timeline.MessageViewModel:
		var body bytes.Buffer
		if err := markdown().Convert([]byte(viewModel.Body), &body); err != nil {
			return fmt.Errorf("timelineui: rendering %s: %w", viewModel.ID, err)
		}
		fmt.Fprintf(out, "<article class=\"message\" id=\"%s\">\n%s", id, body.String())
		if viewModel.Edited || viewModel.LikeCount > 0 {
			out.WriteString("<footer>")
			var annotations []string
			if viewModel.Edited {
				annotations = append(annotations, "<span class=\"edited\">(edited)</span>")
			}
			if viewModel.LikeCount > 0 {
				annotations = append(annotations, fmt.Sprintf("<span class=\"likes\">♥ %d</span>", viewModel.LikeCount))
			}
			out.WriteString(strings.Join(annotations, " "))
			out.WriteString("</footer>\n")
		}
		out.WriteString("</article>\n")
	}
	return nil
}
