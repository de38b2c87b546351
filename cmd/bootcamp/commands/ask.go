package commands

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/antoniostano/bootcamp/internal/app"
	"github.com/antoniostano/bootcamp/internal/tutor"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask the consultant (or the sidekick) one question",
	Long: `Send one prompt to the accountancy consultant. With --sidekick the casual
assistant answers instead, and picture requests produce an image.

Examples:
  bootcamp ask "Explain goodwill on acquisition"
  bootcamp ask --sidekick -o cat.png "draw a cat doing bookkeeping"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sidekick, _ := cmd.Flags().GetBool("sidekick")
		output, _ := cmd.Flags().GetString("output")

		t := tutor.New(tutor.NewGeminiGenerator(cfg.GeminiAPIKey), tutor.Options{
			TextModel:  cfg.TextModel,
			ImageModel: cfg.ImageModel,
			Retry:      app.RetryPolicy(cfg),
		})
		prompt := strings.Join(args, " ")
		ask := t.Consult
		if sidekick {
			ask = t.Chat
		}
		ans, err := ask(cmd.Context(), "cli", prompt)
		if err != nil {
			return err
		}

		if ans.ImageURL != "" {
			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "image generated; use -o to save it")
				return nil
			}
			return saveDataURL(output, ans.ImageURL)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
		return nil
	},
}

// saveDataURL writes the payload of a base64 data URL to path.
func saveDataURL(path, dataURL string) error {
	_, payload, ok := strings.Cut(dataURL, ";base64,")
	if !ok {
		return fmt.Errorf("unexpected image URL format")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Image saved to %s (%d bytes)\n", path, len(raw))
	return nil
}

func init() {
	askCmd.Flags().Bool("sidekick", false, "use the casual sidekick instead of the consultant")
	askCmd.Flags().StringP("output", "o", "", "where to save a generated image")
	rootCmd.AddCommand(askCmd)
}
