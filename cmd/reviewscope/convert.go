package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/spacesedan/reviewscope/internal/artifacts"
	"github.com/spacesedan/reviewscope/internal/classifier"
	"github.com/spacesedan/reviewscope/internal/vectorizer"
)

var convertCmd = &cobra.Command{
	Use:   "convert SRC DST",
	Short: "Convert a model or vectorizer artifact between JSON and msgpack",
	Long: `Convert re-encodes an artifact in the format implied by DST's extension
(.json, .msgpack, .mpk or .mp). The artifact is validated before it is written.`,
	Args: cobra.ExactArgs(2),
	// conversion only touches the two files
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runConvert,
}

func init() {
	convertCmd.Flags().String("kind", "model", "artifact kind (model|vectorizer)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	src, dst := args[0], args[1]

	var artifact any
	switch kind {
	case "model":
		var spec classifier.Spec
		if err := artifacts.Decode(src, &spec); err != nil {
			return err
		}
		if _, err := classifier.New(spec); err != nil {
			return err
		}
		artifact = spec
	case "vectorizer":
		var spec vectorizer.Spec
		if err := artifacts.Decode(src, &spec); err != nil {
			return err
		}
		if _, err := vectorizer.New(spec); err != nil {
			return err
		}
		artifact = spec
	default:
		return fmt.Errorf("unknown artifact kind %q", kind)
	}

	if err := artifacts.Encode(dst, artifact); err != nil {
		return err
	}
	slog.Info("[Convert] Wrote artifact", slog.String("kind", kind), slog.String("path", dst))
	return nil
}
