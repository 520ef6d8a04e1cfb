package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"path"
	"strings"
	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"ferret/pkg/session"
)

const (
	ferretDir          = ".ferret"
	historyFile string = ".ferret_history"

	errorColor = "\033[31m"
	resetColor = "\033[0m"
)

type Term struct {
	session     *session.Session
	line        *liner.State
	cmds        *Commands
	historyFile *os.File
	stdout      io.Writer
	stderr      io.Writer
	color       bool
}

func New(s *session.Session) *Term {
	t := &Term{
		session: s,
		line:    liner.NewLiner(),
		stdout:  os.Stdout,
		stderr:  colorable.NewColorableStderr(),
		color:   isatty.IsTerminal(os.Stderr.Fd()),
		cmds:    NewCommands(s),
	}

	return t
}

// sigintGuard turns SIGINT into a cancellation of whatever long pass
// is running; the signal never reaches the engine directly.
func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		t.session.Cancel.Set()
		fmt.Fprintln(t.stderr, "\ninfo: interrupting current operation.")
	}
}

func (t *Term) Run() error {
	defer t.Close()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	go t.sigintGuard(ch)

	cmds := trie.New()
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			cmds.Add(alias, nil)
		}
	}
	t.line.SetCompleter(func(line string) (c []string) {
		return cmds.PrefixSearch(line)
	})

	userHomeDir := getUserHomeDir()
	fullHistory := path.Join(userHomeDir, ferretDir, historyFile)

	var err error
	t.historyFile, err = os.OpenFile(fullHistory, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(parentDir(fullHistory), 0755); err != nil {
				return fmt.Errorf("create parent dir failed: %v", err)
			}
			t.historyFile, err = os.OpenFile(fullHistory, os.O_CREATE|os.O_RDWR, 0600)
		}
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.\n", err)
		}
	}
	if t.historyFile != nil {
		if _, err = t.line.ReadHistory(t.historyFile); err != nil {
			fmt.Printf("Unable to read history file %s: %v\n", fullHistory, err)
		}
	}

	fmt.Println("Type 'help' for list of commands.")

	for {
		cmd, err := t.promptForInput()
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return errors.New("Prompt for input failed.\n")
		}

		if strings.TrimSpace(cmd) == "" {
			continue
		}

		if err = t.cmds.Call(cmd, t); err != nil {
			t.printError(err)
		}

		if t.session.ExitRequested() {
			return t.handleExit()
		}
	}
}

func (t *Term) printError(err error) {
	if t.color {
		fmt.Fprintf(t.stderr, "%serror: %v%s\n", errorColor, err, resetColor)
		return
	}
	fmt.Fprintf(t.stderr, "error: %v\n", err)
}

func (t *Term) Close() {
	t.line.Close()
}

func getUserHomeDir() string {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return userHomeDir
}

// promptForInput shows the live match count the way the original menu
// did.
func (t *Term) promptForInput() (string, error) {
	prompt := fmt.Sprintf("%d> ", t.session.NumMatches())
	l, err := t.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() error {
	if t.historyFile != nil {
		if _, err := t.line.WriteHistory(t.historyFile); err != nil {
			fmt.Println("readline history error:", err)
			return err
		}
		if err := t.historyFile.Close(); err != nil {
			fmt.Printf("error closing history file: %s\n", err)
			return err
		}
	}

	return nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == os.PathSeparator {
			return path[:i]
		}
	}
	return ""
}
