package terminal

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/shlex"

	"ferret/pkg/session"
)

type cmdFn func(term *Term, args []string) error

type command struct {
	aliases []string
	fn      cmdFn
	help    string
}

func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

type Commands struct {
	cmds    []command
	session *session.Session
}

func NewCommands(s *session.Session) *Commands {
	c := &Commands{session: s}

	c.cmds = []command{
		{
			aliases: []string{"help", "h"},
			fn:      c.help,
			help: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{
			aliases: []string{"pid"},
			help: `Prints or changes the target process.

	pid [PID]

With an argument the session switches to PID and reloads its memory regions;
without one the current target is printed.`},
		{
			aliases: []string{"reset"},
			help:    "forget all matches and reload the target's memory regions.",
		},
		{
			aliases: []string{"snapshot"},
			help:    "save the whole searchable address space as matches, so bare `=`, `!=`, `<`, `>` work without a value scan.",
		},
		{
			aliases: []string{"list", "ls"},
			help:    "list matches as `[id] address, region + offset, type, value`.",
		},
		{
			aliases: []string{"set"},
			help: `Writes a value into matches.

	set [ids=]value[/seconds] ...

ids is a comma separated list of match ids, defaulting to all matches. A
/seconds suffix rewrites the value continuously until interrupted.`},
		{
			aliases: []string{"delete", "del"},
			help:    "delete one match by id.",
		},
		{
			aliases: []string{"dregion"},
			help: `Deletes regions and the matches they contain.

	dregion [!]ID[,ID...]

With a leading ! every region except the listed ones is deleted.`},
		{
			aliases: []string{"lregions"},
			help:    "list the memory regions a scan walks.",
		},
		{
			aliases: []string{"update"},
			help:    "re-read all matches, refreshing their stored values without narrowing.",
		},
		{
			aliases: []string{"watch"},
			help:    "report changes of one match every second until interrupted.",
		},
		{
			aliases: []string{"dump"},
			help: `Dumps target memory.

	dump ADDR LEN [FILE]

Prints LEN bytes at hex address ADDR, 16 per line, or writes them to FILE.`},
		{
			aliases: []string{"write"},
			help: `Writes an explicit value to an explicit address.

	write TYPE ADDR VALUE...

TYPE is one of i8 i16 i32 i64 f32 f64 bytearray string. Bytearray values
may contain ?? wildcards which keep the target's byte.`},
		{
			aliases: []string{"option"},
			help: `Changes a setting.

	option NAME VALUE

scan_data_type: number int int8 int16 int32 int64 float float32 float64 bytearray string
region_scan_level: 1 (heap,stack,exe) 2 (+bss) 3 (all)
detect_reverse_change, dump_with_ascii: 0 or 1
endianness: 0 (host) 1 (little) 2 (big)`},
		{
			aliases: []string{"shell"},
			help:    "run a command through the system shell.",
		},
		{
			aliases: []string{"show"},
			help:    "show version, copying or warranty information.",
		},
		{
			aliases: []string{"exit", "quit", "q"},
			help:    "exit ferret.",
		},
	}
	return c
}

// Call dispatches one raw input line. A leading `"` scans for the rest
// of the line as a string; everything else is tokenized and either
// handled here (help) or forwarded to the session, which also treats
// unknown tokens as scan literals.
func (c *Commands) Call(line string, t *Term) error {
	if strings.HasPrefix(line, "\"") {
		return c.session.HandleString(strings.TrimPrefix(line, "\""))
	}

	argv, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("could not parse command: %v", err)
	}
	if len(argv) == 0 {
		return nil
	}
	for _, cmd := range c.cmds {
		if cmd.fn != nil && cmd.match(argv[0]) {
			return cmd.fn(t, argv[1:])
		}
	}
	return c.session.Handle(argv)
}

func (c *Commands) help(t *Term, args []string) error {
	if len(args) > 0 {
		for _, cmd := range c.cmds {
			if cmd.match(args[0]) {
				fmt.Fprintln(t.stdout, cmd.help)
				return nil
			}
		}
		return fmt.Errorf("unknown command `%s`", args[0])
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, '-', 0)
	for _, cmd := range c.cmds {
		h := cmd.help
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Any number is a scan: `100` finds values equal to 100, `10..20` a range.")
	fmt.Fprintln(t.stdout, "`=` `!=` `<` `>` `+` `-` narrow existing matches, with or without a value.")
	fmt.Fprintln(t.stdout, "`\"text` scans for a string when scan_data_type is string.")
	return nil
}
