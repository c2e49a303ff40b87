// Command cortex manages a dynamic-schema entity store from the shell.
package main

import "github.com/mesh-intelligence/cortex/internal/cli"

func main() {
	cli.Execute()
}
