// Public domain.

package main

import "github.com/soniakeys/sphmass/internal/smprog"

func main() {
	smprog.Main()
}
