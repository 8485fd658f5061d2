package cmd

import (
	"fmt"
)

const banner = `
     _         _   _     _          _     
    / \  _   _| |_| |__ | |    __ _| |__  
   / _ \| | | | __| '_ \| |   / _` + "`" + ` | '_ \ 
  / ___ \ |_| | |_| | | | |__| (_| | |_) |
 /_/   \_\__,_|\__|_| |_|_____\__,_|_.__/ 
                                          
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Web Security Training Lab - Version %s\x1b[0m\n\n", Version)
}
