package cmd

import (
	"ferret/utils"
	"fmt"
	"github.com/urfave/cli"
	"strconv"
)

var dump = cli.Command{
	Name:  "dump",
	Usage: "dump a range of process memory as hex or to a file",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "logFlag, f",
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  "logDesc, d",
			Usage: "specify the log file path",
		},
		cli.BoolFlag{
			Name:  "ascii, a",
			Usage: "append a printable panel to every line",
		},
	},
	Action: func(context *cli.Context) error {
		if err := utils.CheckArgs(context, 3, utils.MinArgs, dumpArgsCheck); err != nil {
			return err
		}

		args := context.Args()
		pid, err := strconv.Atoi(args.First())
		if err != nil {
			return err
		}

		s, err := newSession(context)
		if err != nil {
			return err
		}
		s.Options.DumpWithASCII = context.Bool("ascii")
		if err := s.HandlePid([]string{strconv.Itoa(pid)}); err != nil {
			return err
		}
		return s.HandleDump(args.Tail())
	},
}

func dumpArgsCheck(args cli.Args) error {
	pid := args.First()
	if !utils.CheckPid(pid) {
		return fmt.Errorf("pid %s does not exist", pid)
	}

	return nil
}
