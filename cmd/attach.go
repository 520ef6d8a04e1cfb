package cmd

import (
	"ferret/pkg/logflags"
	"ferret/pkg/session"
	"ferret/pkg/terminal"
	"ferret/utils"
	"fmt"
	"github.com/urfave/cli"
	"strconv"
)

var attach = cli.Command{
	Name:  "attach",
	Usage: "start an interactive scanning session against a process",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "logFlag, f",
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  "logDesc, d",
			Usage: "specify the log file path",
			Value: logflags.DefaultLogDesc,
		},
		cli.BoolFlag{
			Name:  "backend, b",
			Usage: "strip decoration for front-ends parsing the output",
		},
	},
	Action: func(context *cli.Context) error {
		if err := utils.CheckArgs(context, 1, utils.ExactArgs, attachArgsCheck); err != nil {
			return err
		}

		pid, err := strconv.Atoi(context.Args().First())
		if err != nil {
			return err
		}

		s, err := newSession(context)
		if err != nil {
			return err
		}
		s.Options.Backend = context.Bool("backend")
		if err := s.HandlePid([]string{strconv.Itoa(pid)}); err != nil {
			return err
		}

		term := terminal.New(s)
		return term.Run()
	},
}

func newSession(context *cli.Context) (*session.Session, error) {
	if err := logflags.Setup(context.Bool("logFlag"), "scanner", context.String("logDesc")); err != nil {
		return nil, err
	}
	return session.New(nil, nil, logflags.ScannerLogger()), nil
}

func attachArgsCheck(args cli.Args) error {
	pid := args.First()
	if !utils.CheckPid(pid) {
		return fmt.Errorf("pid %s does not exist", pid)
	}

	return nil
}
