package main

import "github.com/oshokin/bundle-deployer/cmd/bundle-deployer/cmd"

func main() {
	cmd.Execute()
}
