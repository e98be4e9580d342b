package main

import (
	"bib/cmd/cmd"
	"bib/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
