package cmd

import (
	"ferret/utils"
	"fmt"
	"github.com/urfave/cli"
	"strconv"
)

var write = cli.Command{
	Name:  "write",
	Usage: "write a value into a process address without entering a session; unsafe while the target is running concurrently",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "logFlag, f",
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  "logDesc, d",
			Usage: "specify the log file path",
		},
	},
	Action: func(context *cli.Context) error {
		if err := utils.CheckArgs(context, 4, utils.MinArgs, writeArgsCheck); err != nil {
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
		if err := s.HandlePid([]string{strconv.Itoa(pid)}); err != nil {
			return err
		}
		return s.HandleWrite(args.Tail())
	},
}

func writeArgsCheck(args cli.Args) error {
	pid := args.First()
	if !utils.CheckPid(pid) {
		return fmt.Errorf("pid %s does not exist", pid)
	}

	return nil
}
