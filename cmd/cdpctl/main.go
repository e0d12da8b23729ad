package main

import (
	"os"

	"github.com/grantcarthew/cdpclient/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
