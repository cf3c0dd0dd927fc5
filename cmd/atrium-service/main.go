package main

import (
	"os"

	"github.com/atriumhq/atrium/assistantservice"
)

func main() {
	if err := assistantservice.Run(); err != nil {
		os.Exit(1)
	}
}
