package main

import "github.com/rentshare/apiserver/cmd"

func main() {
	cmd.Execute()
}
