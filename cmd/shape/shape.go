package shape

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/llmcodec/llmcodec/config"
	"github.com/llmcodec/llmcodec/decode"
	"github.com/llmcodec/llmcodec/encode"
	"github.com/llmcodec/llmcodec/llm"
)

// record adapts a decoded map to the encode contracts so Markdown and
// natural-language output carry the shape's display name and a stable
// field order.
type record struct {
	name string
	data map[string]any
}

func (r record) TypeName() string { return r.name }

func (r record) CodecFields() []encode.Field {
	keys := make([]string, 0, len(r.data))
	for k := range r.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]encode.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, encode.Field{Name: k, Value: fmt.Sprint(r.data[k])})
	}
	return fields
}

// Register adds one `llmc extract <shape>` subcommand per known
// definition. cfg is deferred because the configuration is only loaded
// in the root command's PersistentPreRun.
func Register(rootCmd *cobra.Command, cfg func() *config.Config) error {
	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extracts a structured record from free-form text.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cmd.UsageString())
		},
	}

	for _, def := range load() {
		def := def
		short := def.ShortDescription
		if short == "" {
			short = fmt.Sprintf("Extracts a %s record.", def.Name)
		}
		cmd := &cobra.Command{
			Use:   fmt.Sprintf("%s [input]", def.Name),
			Short: short,
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, args, def, cfg())
			},
		}
		cmd.Flags().String("file", "", "read input text from a file instead of the argument")
		cmd.Flags().String("format", "json", "output format: json, markdown or natural")
		cmd.Flags().Bool("confidence", false, "also report the model's extraction confidence")
		extractCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(extractCmd)
	return nil
}

func run(cmd *cobra.Command, args []string, def *Definition, cfg *config.Config) error {
	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	strategy, err := resolveStrategy(format)
	if err != nil {
		return err
	}

	session, err := llm.NewSession(cfg)
	if err != nil {
		return err
	}

	opts := []decode.Option{
		decode.WithSchema(def.Schema()),
		decode.WithModel(def.Model.Family, def.Model.Size),
	}
	preamble, err := def.RenderPreamble()
	if err != nil {
		return err
	}
	if preamble != "" {
		opts = append(opts, decode.WithPreamble(preamble))
	}

	withConfidence, _ := cmd.Flags().GetBool("confidence")
	var data map[string]any
	var score float64
	if withConfidence {
		res, err := decode.TextWithConfidence[map[string]any](cmd.Context(), session, input, opts...)
		if err != nil {
			return err
		}
		data, score = res.Value, res.Confidence
	} else {
		data, err = decode.Text[map[string]any](cmd.Context(), session, input, opts...)
		if err != nil {
			return err
		}
	}

	var rendered string
	if strings.ToLower(format) == "json" {
		rendered, err = encode.Encode(data, strategy)
	} else {
		rendered, err = encode.Encode(record{name: def.DisplayName(), data: data}, strategy)
	}
	if err != nil {
		return err
	}
	fmt.Println(rendered)

	if withConfidence {
		fmt.Printf("confidence: %s\n", colorScore(score))
	}
	return nil
}

// readInput takes the text to extract from, in order of precedence:
// the --file flag, the positional argument, then stdin.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no input: pass text as an argument, via --file, or on stdin")
	}
	return string(data), nil
}

func resolveStrategy(format string) (encode.Strategy, error) {
	switch strings.ToLower(format) {
	case "json":
		return encode.JSON, nil
	case "markdown":
		return encode.Markdown, nil
	case "natural":
		return encode.NaturalLanguage, nil
	default:
		return encode.Strategy{}, fmt.Errorf("unknown format %q (want json, markdown or natural)", format)
	}
}

// colorScore renders the confidence with the band colour the scoring
// prompt describes: red below 0.5, yellow below 0.8, green above.
func colorScore(score float64) string {
	text := fmt.Sprintf("%.2f", score)
	switch {
	case score < 0.5:
		return color.RedString(text)
	case score < 0.8:
		return color.YellowString(text)
	default:
		return color.GreenString(text)
	}
}
