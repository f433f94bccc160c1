package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"mediabridge/internal/protocol"
	"mediabridge/internal/runtime"
)

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	subtitlesCmd := &cobra.Command{
		Use:   "subtitles",
		Short: "Generate, download, or search subtitles",
	}

	subtitlesCmd.AddCommand(newSubtitlesGenerateCommand(ctx))
	subtitlesCmd.AddCommand(newSubtitlesDownloadCommand(ctx))
	subtitlesCmd.AddCommand(newSubtitlesSearchCommand(ctx))

	return subtitlesCmd
}

func newSubtitlesGenerateCommand(ctx *commandContext) *cobra.Command {
	var language string
	var model string

	cmd := &cobra.Command{
		Use:   "generate <file>...",
		Short: "Generate subtitles with speech recognition",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandFileArgs(args)
			if err != nil {
				return err
			}
			if language != "" {
				normalized, err := protocol.NormalizeLanguage(language)
				if err != nil {
					return err
				}
				language = normalized
			}

			return ctx.withRuntime(func(runCtx context.Context, rt *runtime.Runtime) error {
				env, err := protocol.NewEnvelope(protocol.GenerateSubtitles{
					FilePaths: paths,
					Language:  language,
					Model:     model,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				term, err := runStream(runCtx, rt, env, out, "transcribing")
				if err != nil {
					return err
				}
				if !term.Succeeded() {
					return term.Err()
				}

				for _, file := range fieldStrings(term, "subtitle_files") {
					fmt.Fprintf(out, "wrote %s\n", file)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Spoken language hint (e.g. en, fr)")
	cmd.Flags().StringVar(&model, "model", "", "Speech recognition model override")
	return cmd
}

func newSubtitlesDownloadCommand(ctx *commandContext) *cobra.Command {
	var languages []string
	var provider string

	cmd := &cobra.Command{
		Use:   "download <file>...",
		Short: "Download subtitles from the worker's provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			paths, err := expandFileArgs(args)
			if err != nil {
				return err
			}
			if len(languages) == 0 {
				languages = cfg.Subtitles.Languages
			}
			normalized, err := protocol.NormalizeLanguages(languages)
			if err != nil {
				return err
			}

			return ctx.withRuntime(func(runCtx context.Context, rt *runtime.Runtime) error {
				env, err := protocol.NewEnvelope(protocol.DownloadSubtitles{
					FilePaths: paths,
					Languages: normalized,
					Provider:  provider,
				})
				if err != nil {
					return err
				}
				term, err := rt.Pool().Dispatch(runCtx, env)
				if err != nil {
					return err
				}
				if !term.Succeeded() {
					return term.Err()
				}

				out := cmd.OutOrStdout()
				files := fieldStrings(term, "subtitle_files")
				for _, file := range files {
					fmt.Fprintf(out, "wrote %s\n", file)
				}
				if len(files) == 0 {
					fmt.Fprintln(out, "No subtitles found")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&languages, "language", "l", nil, "Subtitle languages (defaults to configuration)")
	cmd.Flags().StringVar(&provider, "provider", "", "Subtitle provider override")
	return cmd
}

type subtitleHit struct {
	Title    string `json:"title"`
	Language string `json:"language"`
	Score    int    `json:"score"`
	ID       string `json:"id"`
}

func newSubtitlesSearchCommand(ctx *commandContext) *cobra.Command {
	var languages []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a subtitle provider without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(languages) == 0 {
				languages = cfg.Subtitles.Languages
			}
			normalized, err := protocol.NormalizeLanguages(languages)
			if err != nil {
				return err
			}

			return ctx.withRuntime(func(runCtx context.Context, rt *runtime.Runtime) error {
				env, err := protocol.NewEnvelope(protocol.SearchSubtitles{
					Query:     args[0],
					Languages: normalized,
				})
				if err != nil {
					return err
				}
				term, err := rt.Pool().Dispatch(runCtx, env)
				if err != nil {
					return err
				}
				if !term.Succeeded() {
					return term.Err()
				}

				var hits []subtitleHit
				if raw := term.Field("results"); raw != nil {
					if err := json.Unmarshal(raw, &hits); err != nil {
						return fmt.Errorf("decode search results: %w", err)
					}
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]any{"query": args[0], "results": hits})
				}

				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintln(out, "No results")
					return nil
				}
				rows := make([][]string, 0, len(hits))
				for _, hit := range hits {
					rows = append(rows, []string{
						hit.ID,
						hit.Title,
						hit.Language,
						fmt.Sprintf("%d", hit.Score),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{{name: "ID"}, {name: "Title"}, {name: "Language"}, {name: "Score", numeric: true}},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&languages, "language", "l", nil, "Subtitle languages (defaults to configuration)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}
