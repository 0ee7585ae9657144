package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/llm"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Writes a .llmcodec/config.yaml in the current directory.",
	Run:   Init,
}

// Init is the cobra handler for `llmc init`.
func Init(_ *cobra.Command, _ []string) {
	fresh := config.Default()

	var provider string
	prompt := &survey.Select{
		Message: "Which provider should llmc talk to?",
		Options: llm.SupportedProviders(),
		Default: fresh.Provider,
	}
	if err := survey.AskOne(prompt, &provider); err != nil {
		fmt.Printf("Error reading provider choice: %v\n", err)
		os.Exit(1)
	}
	fresh.Provider = provider

	if err := config.Save(".", fresh); err != nil {
		fmt.Printf("Error writing configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Configuration written to .llmcodec/config.yaml")
}
