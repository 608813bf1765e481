package main

import "github.com/browserlab-dev/workflow-runner/pkg/cli"

func main() {
	cli.Execute()
}
