package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

const banner = `
  _____                 _____            _ 
 |_   _|               / ____|          | |
   | |  _ __ ___  _ __| (___   ___  __ _| |
   | | | '__/ _ \| '_ \\___ \ / _ \/ _` + "`" + ` | |
  _| |_| | | (_) | | | |___) |  __/ (_| | |
 |_____|_|  \___/|_| |_|____/ \___|\__,_|_|
`

func printBanner(w io.Writer) {
	fmt.Fprint(w, color.BlueString("%s", banner))
	fmt.Fprintln(w, color.GreenString("  End-to-end task encryption - Version %s", Version))
	fmt.Fprintln(w)
}
