// Package debugtext formats the on-screen debug overlay as ANSI colored terminal lines.
package debugtext

import (
	"fmt"
	"io"
)

// ANSI color sequences matching the overlay palette.
const (
	Reset   = "\033[0m"
	Emerald = "\033[38;5;35m"
	White   = "\033[37m"
	Orange  = "\033[38;5;208m"
	Cyan    = "\033[36m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
)

// Separator ends one overlay block.
const Separator = "==============================================="

// Colorize wraps text with color and a reset suffix.
func Colorize(color, text string) string {
	return color + text + Reset
}

// Colorf wraps a formatted string with color.
func Colorf(color, format string, args ...any) string {
	return color + fmt.Sprintf(format, args...) + Reset
}

// Line writes one colored overlay line to w.
func Line(w io.Writer, color, format string, args ...any) {
	fmt.Fprintln(w, Colorf(color, format, args...))
}

// StripANSI removes every \033[...m sequence from s.
//
// Postcondition: len(result) <= len(s).
func StripANSI(s string) string {
	result := make([]byte, 0, len(s))
	i := 0
	for i < len(s) {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			if j < len(s) {
				i = j + 1
				continue
			}
		}
		result = append(result, s[i])
		i++
	}
	return string(result)
}
