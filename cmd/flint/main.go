// main is the entry point of the flint CLI.
package main

import (
	"github.com/openpreserve/flint/cmd"
	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/iocache"
)

func main() {
	cmd.SetCacheManager(iocache.Manager)
	err := cmd.Execute()
	iocache.CloseStores()
	if perr := cmd.StopProfiling(); perr != nil {
		contract.LogWarn("Failed to stop profiling", perr)
	}
	if err != nil {
		contract.LogFatal("flint", err)
	}
}
