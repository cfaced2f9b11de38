package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/woodfish/muyu/go/internal/client"
	"github.com/woodfish/muyu/go/internal/client/settings"
	"github.com/woodfish/muyu/go/internal/client/transport"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiClear = "\r\033[K"
)

// terminal renders the app on a single status line
type terminal struct {
	mu     sync.Mutex
	out    io.Writer
	accent string

	count  int64
	state  transport.State
	notice string
	combo  string
}

func newTerminal(out io.Writer, theme settings.Theme) *terminal {
	accent := "\033[97m"
	if theme == settings.ThemeLight {
		accent = "\033[30m"
	}
	return &terminal{out: out, accent: accent}
}

func (t *terminal) Help() {
	fmt.Fprintln(t.out, "Enter: tap   r: retry connection   q: quit")
}

func (t *terminal) ShowCount(total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = total
	t.renderLocked()
}

func (t *terminal) ShowTap(local bool) {
	if !local {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.combo = ""
	t.renderLocked()
}

func (t *terminal) ShowCombo(style client.ComboStyle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.combo = style.Label
	t.renderLocked()
}

func (t *terminal) ShowConnection(status transport.Status, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = status.State
	t.notice = message
	if message != "" {
		t.notice += " (press r to retry)"
	}
	t.renderLocked()
}

func (t *terminal) PlaySound() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, "\a")
}

func (t *terminal) Vibrate() {
	log.Debug().Msg("no haptic device on a terminal")
}

func (t *terminal) renderLocked() {
	line := fmt.Sprintf("%s%s%s功德 %d%s  %s[%s]%s", ansiClear, t.accent, ansiBold, t.count, ansiReset, ansiDim, t.state, ansiReset)
	if t.combo != "" {
		line += "  " + t.combo
	}
	if t.notice != "" {
		line += "  " + t.notice
	}
	fmt.Fprint(t.out, line)
}
