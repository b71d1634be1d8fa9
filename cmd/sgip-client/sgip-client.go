/*
CLI for the SGIP client
*/
package main

import (
	"github.com/skycoin/sgip/cmd/sgip-client/commands"
)

func main() {
	commands.Execute()
}
