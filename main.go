package main

import (
	"context"
	"os"

	"github.com/jonesrussell/north-cloud/categorizer/cmd"
)

func main() {
	os.Exit(cmd.Execute(context.Background(), os.Args[1:]))
}
