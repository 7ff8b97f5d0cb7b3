// Command bridge-ui-runner runs UI scenarios against the Proton Mail Bridge
// desktop application.
package main

import "github.com/devicelab-dev/bridge-ui-runner/pkg/cli"

func main() {
	cli.Execute()
}
