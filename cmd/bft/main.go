// Bft runs the consensus liveness core on a simulated network.
package main

import "github.com/relab/bft/internal/cli"

func main() {
	cli.Execute()
}
