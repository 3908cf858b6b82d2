package main

import (
	"github.com/furfur/central/internal/cmd"
)

func main() {
	cmd.Execute()
}
