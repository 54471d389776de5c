package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/cyp0633/doseplan/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
