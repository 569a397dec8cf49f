package main

import "github.com/oshokin/extpack/cmd/extpack-fetch/cmd"

func main() {
	cmd.Execute()
}
