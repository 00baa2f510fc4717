// Command stockroom manages an inventory whose categories and item groups
// are defined at runtime.
package main

import "github.com/mesh-intelligence/stockroom/internal/cli"

func main() {
	cli.Execute()
}
