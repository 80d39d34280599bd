package main

import (
	"context"
	"flag"
	"os"

	"github.com/yuhengfdada/pintofs/cmd/pintofs/cmd"
	"github.com/yuhengfdada/pintofs/log"
)

func main() {
	help := flag.Bool("help", false, "Display help about this command")
	log.AddFlags()
	flag.Parse()
	if *help {
		cmd.PrintHelp()
		os.Exit(0)
	}

	err := cmd.Run(context.Background(), flag.Args())
	if err != nil {
		log.Fatal(err)
	}
}
