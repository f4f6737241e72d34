package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pluginrelay/app/usecase"
	"pluginrelay/internal/client"
)

var (
	generateServer   string
	generateOut      string
	generateStdout   bool
	generateInstall  string
	generateActivate bool
)

var errGenerationFailed = errors.New("generation failed")

var generateCmd = &cobra.Command{
	Use:   "generate [request...]",
	Short: "Ask a running relay for a plugin and save custom-plugin.php",
	Long: `Send a plain-language request to a running relay, print the returned code
and save it as custom-plugin.php.

With no arguments the request is read from stdin. On any failure the
fallback code is printed and saved and the command exits non-zero.

Examples:
  pluginrelay generate "Change add to cart button to blue"
  echo "Add a free shipping notice" | pluginrelay generate --out ./plugins
  pluginrelay generate --stdout "Send email to admin on new order" > plugin.php
  pluginrelay generate --install /var/www/html --activate "Add a free shipping notice"`,
	RunE: runGenerate,
}

func init() {
	defaultServer := os.Getenv("PLUGINRELAY_SERVER")
	if defaultServer == "" {
		defaultServer = client.DefaultServerURL
	}
	generateCmd.Flags().StringVar(&generateServer, "server", defaultServer, "Relay base URL (env PLUGINRELAY_SERVER)")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", ".", "Directory for custom-plugin.php")
	generateCmd.Flags().BoolVar(&generateStdout, "stdout", false, "Write only the code to stdout and skip saving")
	generateCmd.Flags().StringVar(&generateInstall, "install", "", "WordPress root to install the plugin into on success")
	generateCmd.Flags().BoolVar(&generateActivate, "activate", false, "Activate the installed plugin with wp-cli")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read request from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	code, genErr := client.New(generateServer, nil).Generate(cmd.Context(), prompt)

	if generateStdout {
		fmt.Fprintln(out, code)
		if genErr != nil {
			color.New(color.FgRed).Fprintf(errOut, "error: %v\n", genErr)
			return errGenerationFailed
		}
		return nil
	}

	if genErr != nil {
		color.New(color.FgRed).Fprintf(errOut, "error: %v\n", genErr)
	} else {
		color.New(color.FgGreen).Fprintln(errOut, "plugin generated")
	}
	fmt.Fprintln(out, code)

	path, err := client.SaveToFile(generateOut, code)
	if err != nil {
		return err
	}
	color.New(color.FgCyan).Fprintf(errOut, "saved %s\n", path)

	if genErr != nil {
		return errGenerationFailed
	}

	if generateInstall != "" {
		inst, err := usecase.NewWordPressInstaller(generateInstall, generateActivate).Install(cmd.Context(), code)
		if err != nil {
			if inst != nil && inst.Output != "" {
				fmt.Fprint(errOut, inst.Output)
			}
			return fmt.Errorf("install plugin: %w", err)
		}
		color.New(color.FgCyan).Fprintf(errOut, "installed %s as %s\n", inst.Path, inst.Slug)
	}
	return nil
}
