// gr is the Greenroom CLI for rotating channel accounts across browser pools.
package main

import (
	"os"

	"github.com/xcawolfe-amzn/greenroom/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
