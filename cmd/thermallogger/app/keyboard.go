package app

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// ParseCommand maps a keyboard line to a command: s saves, c cycles the
// colormap, q quits.
func ParseCommand(line string) (Command, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s":
		return CommandSave, true
	case "c":
		return CommandNextColormap, true
	case "q":
		return CommandQuit, true
	default:
		return 0, false
	}
}

// ReadCommands forwards commands typed on r until r is exhausted or ctx is
// done. The returned channel is closed when reading stops. A pending read on
// a terminal cannot be interrupted, so the goroutine may outlive ctx until the
// next line arrives.
func ReadCommands(ctx context.Context, r io.Reader) <-chan Command {
	commands := make(chan Command)

	go func() {
		defer close(commands)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			cmd, ok := ParseCommand(scanner.Text())
			if !ok {
				continue
			}

			select {
			case commands <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	return commands
}
