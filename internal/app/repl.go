package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/cmorales95/defishell/internal/version"
)

const clearScreen = "\x1b[2J\x1b[H"

// runREPL reads one input per line until EOF or a quit request. Errors are
// rendered and the loop keeps going, so one bad line never ends a session.
func (s *runtimeState) runREPL() error {
	interactive := stdinIsTerminal(s.runner.stdin)

	scanner := bufio.NewScanner(s.runner.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Fprint(s.runner.stdout, s.prompt())
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := s.dispatchLine(line); err != nil {
			s.renderError(err)
			s.lastSuggestions = nil
		}
		if s.clearRequested {
			s.clearRequested = false
			if interactive {
				fmt.Fprint(s.runner.stdout, clearScreen)
			}
		}
		if s.quitRequested {
			break
		}
	}
	return scanner.Err()
}

// prompt shows the active fiber, so the user always knows which scope their
// next bare command lands in.
func (s *runtimeState) prompt() string {
	if s.sess != nil && s.sess.ActiveProtocol != "" {
		return fmt.Sprintf("%s[%s]> ", version.CLIName, s.sess.ActiveProtocol)
	}
	return version.CLIName + "> "
}

func stdinIsTerminal(r any) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
