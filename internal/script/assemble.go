package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atelier-fab/claymore/internal/motion"
)

// MaxProgramSize is the controller's program buffer limit in bytes. An
// assembled program over this size is rejected before any send attempt.
const MaxProgramSize = 2 << 18

// ErrProgramTooLarge reports an assembled program exceeding MaxProgramSize.
var ErrProgramTooLarge = errors.New("assembled program exceeds controller buffer size")

// Program is an assembled, sendable controller program.
type Program struct {
	Name string
	Text string
}

// Bytes returns the raw payload sent over the command channel.
func (p Program) Bytes() []byte { return []byte(p.Text) }

// Size returns the encoded program size in bytes.
func (p Program) Size() int { return len(p.Text) }

// Assemble flattens the command lists in order, renders every command,
// wraps the body in a named procedure with a trailing invocation and
// re-indents each body line one level. Empty input yields the bare
// wrapper. Oversized programs fail hard; nothing is ever truncated.
func Assemble(name string, lists ...[]motion.Command) (Program, error) {
	var body strings.Builder
	for _, list := range lists {
		for _, cmd := range list {
			body.WriteString(Render(cmd))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\ndef %s():\n", name)
	for line := range strings.Lines(body.String()) {
		b.WriteString("\t")
		b.WriteString(line)
	}
	fmt.Fprintf(&b, "end\n\n%s()\n", name)

	p := Program{Name: name, Text: b.String()}
	if p.Size() > MaxProgramSize {
		return Program{}, fmt.Errorf("program %s is %d bytes (cap %d): %w",
			name, p.Size(), MaxProgramSize, ErrProgramTooLarge)
	}
	return p, nil
}

// StopProgram assembles the small halt procedure used for operator abort.
func StopProgram() Program {
	var b strings.Builder
	b.WriteString("\ndef halt_run():\n")
	b.WriteString("\ttextmsg(\"halting fabrication run\")\n")
	b.WriteString("\tstopl(2.0)\n")
	b.WriteString("end\n\nhalt_run()\n")
	return Program{Name: "halt_run", Text: b.String()}
}
