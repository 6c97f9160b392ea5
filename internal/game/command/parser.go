package command

import "strings"

// ParseResult holds the parsed command word and arguments of a console line.
type ParseResult struct {
	// Command is the first word of the input, lowercased.
	Command string
	// Args are the remaining words after the command, case preserved.
	Args []string
}

// Parse splits a console line into a command and arguments. Text after a '#' is a
// comment.
//
// Postcondition: Returns a ParseResult. If the line holds no words, Command is empty.
func Parse(line string) ParseResult {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ParseResult{}
	}
	res := ParseResult{Command: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		res.Args = fields[1:]
	}
	return res
}
