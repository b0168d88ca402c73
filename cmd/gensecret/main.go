// Gensecret prints a freshly generated JWT signing key, ready to paste
// into the authd SECRET_KEY setting: 32 random bytes, hex encoded.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const keyLen = 32

func main() {
	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "can't generate secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("SECRET_KEY=%s\n", hex.EncodeToString(key))
}
