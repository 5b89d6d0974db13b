// Command pipeboard runs the pipeline board CLI and HTTP server.
package main

import "github.com/mesh-intelligence/pipeboard/internal/cli"

func main() {
	cli.Execute()
}
