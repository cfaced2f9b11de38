package client

import "strconv"

// ComboStyle describes the floating "+n" label shown when a burst of taps is flushed
type ComboStyle struct {
	Label string
	Color string
	Scale float64
}

// Combo picks the label style for a burst of n taps. Longer bursts get a bigger,
// warmer label.
func Combo(n int) ComboStyle {
	label := "+" + strconv.Itoa(n)
	switch {
	case n >= 10:
		return ComboStyle{Label: label, Color: "#FF6B6B", Scale: 1.5}
	case n >= 5:
		return ComboStyle{Label: label, Color: "#4ECDC4", Scale: 1.3}
	case n >= 2:
		return ComboStyle{Label: label, Color: "#95E1D3", Scale: 1.2}
	default:
		return ComboStyle{Label: "+1", Color: "#FFFFFF", Scale: 1}
	}
}
