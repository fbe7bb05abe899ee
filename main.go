package main

import "github.com/sfazliddinov385/walmart-stock-analysis/cmd"

func main() {
	cmd.Execute()
}
