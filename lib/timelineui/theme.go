// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timelineui

import (
	"encoding/binary"

	"github.com/charmbracelet/lipgloss"
	"github.com/zeebo/blake3"

	"github.com/parley-chat/parley/lib/ref"
)

// Theme is the colour palette for terminal rendering. All colours are
// ANSI 256-colour codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// SenderColors are assigned to senders by a stable hash of the
	// user ID.
	SenderColors [6]lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	LinkForeground   lipgloss.Color

	LikeForeground      lipgloss.Color
	TombstoneForeground lipgloss.Color
}

// DefaultTheme suits dark terminals.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SenderColors: [6]lipgloss.Color{
		lipgloss.Color("75"),  // blue
		lipgloss.Color("114"), // green
		lipgloss.Color("141"), // purple
		lipgloss.Color("208"), // orange
		lipgloss.Color("220"), // amber
		lipgloss.Color("80"),  // teal
	},

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	LinkForeground:   lipgloss.Color("75"),

	LikeForeground:      lipgloss.Color("204"), // pink
	TombstoneForeground: lipgloss.Color("241"),
}

// SenderColor picks the sender's colour. The same user always gets
// the same colour.
func (theme Theme) SenderColor(sender ref.UserID) lipgloss.Color {
	sum := blake3.Sum256([]byte(sender.String()))
	return theme.SenderColors[binary.BigEndian.Uint32(sum[:4])%uint32(len(theme.SenderColors))]
}
