package main

import "github.com/oshokin/extpack/cmd/extpack-pack/cmd"

func main() {
	cmd.Execute()
}
