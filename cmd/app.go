package cmd

import "github.com/urfave/cli"

const (
	usage = `ferret is an interactive memory scanner that locates variables in a
             running process by repeatedly narrowing candidate addresses, then reads,
             watches, or rewrites them in place`
)

func NewFerret() *cli.App {
	app := cli.NewApp()
	app.Name = "ferret"
	app.Usage = usage
	app.Commands = []cli.Command{
		attach,
		dump,
		write,
		regions,
	}

	return app
}
