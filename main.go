// Package main is the entry point of subplay.
package main

import (
	"github.com/samber/lo"
	"github.com/subplay/subplay/cmd"
	"github.com/subplay/subplay/config"
	"github.com/subplay/subplay/log"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
