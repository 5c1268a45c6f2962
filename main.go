package main

import (
	"github.com/sergev/swpll/cmd"

	_ "github.com/sergev/swpll/bridge"
	_ "github.com/sergev/swpll/usbbridge"
)

func main() {
	cmd.Execute()
}
