package main

import "github.com/saadjs/bitelog/cmd/bitelog"

func main() {
	bitelog.Execute()
}
