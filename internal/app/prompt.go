package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"mediarc/internal/archive"
)

// ConsolePrompter implements archive.Prompter over an input/output stream
// pair, re-asking until one of the offered options is entered.
type ConsolePrompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewConsolePrompter creates a prompter reading from in and writing to out.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewScanner(in), out: out}
}

// Ask prints the prompt and reads lines until the answer is one of options.
func (p *ConsolePrompter) Ask(prompt string, options []string) (string, error) {
	valid := make(map[string]struct{}, len(options))
	for _, o := range options {
		valid[o] = struct{}{}
	}

	for {
		fmt.Fprint(p.out, prompt)
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return "", fmt.Errorf("reading answer: %w", err)
			}
			return "", io.EOF
		}
		answer := strings.TrimSpace(p.in.Text())
		if _, ok := valid[answer]; ok {
			return answer, nil
		}
	}
}

var _ archive.Prompter = (*ConsolePrompter)(nil)
