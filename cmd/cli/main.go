// Package main implements the ecowatch CLI tool.
// It provides commands for reporting environmental violations and chatting
// about them in real time.
package main

import "github.com/ecowatch/ecowatch/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
