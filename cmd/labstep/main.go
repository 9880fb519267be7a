package main

import (
	"os"

	"github.com/labstep/labstep-go/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
