package minit

import (
	"log"
	"runtime"

	"github.com/leviar-network/go-miniwallet/build"
)

func PrintVersion() {
	v := build.UserVersion()
	log.Printf("MiniWallet version: %s", v)
	log.Printf("System version: %s", runtime.GOARCH+"/"+runtime.GOOS)
	log.Printf("Golang version: %s", runtime.Version())
}
