package main

import "github.com/pechasssmaxx/polyfive-arena/cmd"

func main() {
	cmd.Execute()
}
