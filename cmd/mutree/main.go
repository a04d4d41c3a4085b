// Command mutree builds and random-walks mutation trees over single-cell
// genotype matrices.
package main

import (
	"context"
	"os"

	"github.com/roach88/mutree/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
