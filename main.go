package main

import "github.com/jjenkins/countries/cmd"

func main() {
	cmd.Execute()
}
