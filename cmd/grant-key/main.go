// Package main provides a one-shot utility for spectate grant key generation.
//
// It emits the asymmetric keypair used to sign spectator feed grants.
package main

import (
	"os"

	"github.com/sbliven/crew9bot/internal/platform/config"
	"github.com/sbliven/crew9bot/internal/tools/grantkey"
)

func main() {
	if err := grantkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate spectate grant key: %v", err)
	}
}
