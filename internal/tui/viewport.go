package tui

import "github.com/charmbracelet/bubbles/viewport"

// scrollArea exposes a bubbles viewport to the scroll policy, measured in lines.
type scrollArea struct {
	vp *viewport.Model
}

func (s scrollArea) ScrollTop() int    { return s.vp.YOffset }
func (s scrollArea) ClientHeight() int { return s.vp.Height }
func (s scrollArea) ScrollHeight() int { return s.vp.TotalLineCount() }
func (s scrollArea) ScrollToBottom()   { s.vp.GotoBottom() }
