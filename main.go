package main

import (
	"os"

	"fence/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
