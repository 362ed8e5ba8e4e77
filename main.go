// Package main is the entry point of audiobook-dl.
package main

import (
	"time"

	"github.com/audiobook-dl/audiobook-dl/cmd"
	"github.com/audiobook-dl/audiobook-dl/config"
	"github.com/audiobook-dl/audiobook-dl/internal/scratch"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/where"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	go scratch.CollectGarbage(where.Temp(), time.Now())

	cmd.Execute()
}
