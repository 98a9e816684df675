// Command clinicsim simulates an M/M/c clinic and computes its Erlang-C
// metrics.
package main

import "github.com/sarchlab/clinicsim/cmd/clinicsim/cmd"

func main() {
	cmd.Execute()
}
