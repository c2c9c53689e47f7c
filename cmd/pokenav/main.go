// Command pokenav serves a static Pokédex site with a shared navigation
// header and live name search, or bakes the header into the pages on disk.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
