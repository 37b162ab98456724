package relocation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// ExecTool runs an external relocation program as
//
//	<command...> <input> <output> <from>=<to>...
//
// with the mapping sorted by source pattern.
type ExecTool struct {
	Command []string
	Env     []string
}

func (t ExecTool) Relocate(ctx context.Context, input, output string, mapping map[string]string) error {
	if len(t.Command) == 0 {
		return errors.New("relocation command is empty")
	}
	cmd := exec.CommandContext(ctx, t.Command[0], t.Args(input, output, mapping)...)
	if len(t.Env) > 0 {
		cmd.Env = append(cmd.Environ(), t.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("run %s: %w", t.Command[0], err)
		}
		return fmt.Errorf("run %s: %w: %s", t.Command[0], err, msg)
	}
	return nil
}

// Args returns the arguments passed after the command name.
func (t ExecTool) Args(input, output string, mapping map[string]string) []string {
	from := make([]string, 0, len(mapping))
	for k := range mapping {
		from = append(from, k)
	}
	sort.Strings(from)

	var args []string
	if len(t.Command) > 1 {
		args = append(args, t.Command[1:]...)
	}
	args = append(args, input, output)
	for _, k := range from {
		args = append(args, k+"="+mapping[k])
	}
	return args
}
