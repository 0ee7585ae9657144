package main

import "github.com/llmcodec/llmcodec/cmd"

func main() {
	cmd.Execute()
}
