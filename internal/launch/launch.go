package launch

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"

	"github.com/0xADE/ade-launchd/internal/app"
	"github.com/0xADE/ade-launchd/internal/indexer/desktop"
	"github.com/0xADE/ade-launchd/internal/indexer/settings"
	"github.com/google/shlex"
)

const opener = "xdg-open"

var (
	// ErrUnknownSettings is returned for a settings id missing from the catalog
	ErrUnknownSettings = errors.New("unknown settings shortcut")
	// ErrEmptyCommand is returned when an entry resolves to no command
	ErrEmptyCommand = errors.New("empty exec command")
)

// Launcher turns index entries into processes
type Launcher struct {
	terminal string
	catalog  *settings.Catalog
	logger   *slog.Logger
}

// New creates a launcher. terminal is the command used for entries that
// must run in a terminal.
func New(terminal string, catalog *settings.Catalog, logger *slog.Logger) *Launcher {
	if catalog == nil {
		catalog = settings.Builtin()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{terminal: terminal, catalog: catalog, logger: logger}
}

// Command builds the command for e. Desktop files are read again so that
// edits since the last scan apply.
func (l *Launcher) Command(e app.Entry, inTerminal bool) (*exec.Cmd, error) {
	argv, terminal, err := l.argv(e)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%s: %w", e.ID, ErrEmptyCommand)
	}

	if inTerminal || terminal {
		return exec.Command(l.terminal, append([]string{"-e"}, argv...)...), nil
	}
	return exec.Command(argv[0], argv[1:]...), nil
}

func (l *Launcher) argv(e app.Entry) ([]string, bool, error) {
	switch {
	case settings.IsSettingsID(e.ID):
		item, ok := l.catalog.Lookup(e.ID)
		if !ok {
			return nil, false, fmt.Errorf("%s: %w", e.ID, ErrUnknownSettings)
		}
		argv, err := split(item.Exec)
		return argv, false, err

	case strings.HasSuffix(e.ID, ".desktop"):
		d, err := desktop.ParseDesktopFile(e.ID)
		if err != nil {
			// removed since the last scan, fall back to what was indexed
			l.logger.Debug("desktop file unreadable, using indexed command", "file", e.ID, "error", err)
			argv, err := split(e.Arguments)
			return argv, false, err
		}
		argv, err := d.ExpandExecCommand()
		return argv, d.Terminal, err

	case strings.Contains(e.ID, "://"):
		return []string{opener, e.ID}, false, nil

	default:
		args, err := split(e.Arguments)
		if err != nil {
			return nil, false, err
		}
		return append([]string{e.ID}, args...), false, nil
	}
}

func split(line string) ([]string, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("failed to split %q: %w", line, err)
	}
	return argv, nil
}

// Start launches e in its own session and returns the process id. The
// child is reaped in the background.
func (l *Launcher) Start(e app.Entry, inTerminal bool) (int, error) {
	cmd, err := l.Command(e, inTerminal)
	if err != nil {
		return 0, err
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", e.ID, err)
	}

	pid := cmd.Process.Pid
	l.logger.Info("launched", "id", e.ID, "name", e.Name, "pid", pid, "argv", cmd.Args)

	go func() {
		if err := cmd.Wait(); err != nil {
			l.logger.Debug("process exited", "pid", pid, "error", err)
		}
	}()
	return pid, nil
}
