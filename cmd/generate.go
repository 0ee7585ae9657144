package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/llmcodec/llmcodec/gen"
)

var generateCmd = &cobra.Command{
	Use:   "generate [dir]",
	Short: "Generates codec conformances for structs annotated with //llmc:generate.",
	Args:  cobra.MaximumNArgs(1),
	Run:   Generate,
}

// Generate is the cobra handler for `llmc generate`.
func Generate(_ *cobra.Command, args []string) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	written, err := gen.Dir(dir)
	if err != nil {
		fmt.Printf("Error generating conformances: %v\n", err)
		os.Exit(1)
	}
	if len(written) == 0 {
		fmt.Println("No annotated structs found.")
		return
	}
	for _, f := range written {
		fmt.Printf("Wrote %s\n", f)
	}
}
