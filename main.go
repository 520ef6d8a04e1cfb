package main

import (
	"ferret/cmd"
	"log"
	"os"
)

func main() {
	app := cmd.NewFerret()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
