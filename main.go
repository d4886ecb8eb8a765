package main

import "github.com/ValentinKolb/loadit/cmd"

func main() {
	cmd.Execute()
}
