// The main package for the cesregistry executable.
package main

import (
	"github.com/cesdata/ces-registry-crawler/cmd"
)

func main() {
	cmd.Execute()
}
