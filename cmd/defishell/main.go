package main

import (
	"os"

	"github.com/cmorales95/defishell/internal/app"
)

func main() {
	os.Exit(app.NewRunner().Run(os.Args[1:]))
}
