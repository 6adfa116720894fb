package main

import "github.com/rishavrajjain/recipewallet/cmd"

func main() {
	cmd.Execute()
}
