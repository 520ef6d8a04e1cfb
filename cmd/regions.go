package cmd

import (
	"ferret/utils"
	"fmt"
	"github.com/urfave/cli"
	"strconv"
)

var regions = cli.Command{
	Name:  "regions",
	Usage: "list the memory regions a scan of the process would walk",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "logFlag, f",
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  "logDesc, d",
			Usage: "specify the log file path",
		},
		cli.IntFlag{
			Name:  "level, l",
			Usage: "region scan level: 1 heap/stack/exe, 2 +bss, 3 all",
			Value: 2,
		},
	},
	Action: func(context *cli.Context) error {
		if err := utils.CheckArgs(context, 1, utils.ExactArgs, regionsArgsCheck); err != nil {
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
		if err := s.HandleOption([]string{"region_scan_level", strconv.Itoa(context.Int("level"))}); err != nil {
			return err
		}
		if err := s.HandlePid([]string{strconv.Itoa(pid)}); err != nil {
			return err
		}
		return s.HandleLregions()
	},
}

func regionsArgsCheck(args cli.Args) error {
	pid := args.First()
	if !utils.CheckPid(pid) {
		return fmt.Errorf("pid %s does not exist", pid)
	}

	return nil
}
