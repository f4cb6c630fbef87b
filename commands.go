package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabfab/quizrag/auth"
	"github.com/fabfab/quizrag/ingestion"
	"github.com/fabfab/quizrag/prompts"
	"github.com/fabfab/quizrag/workspace"
)

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "quizrag",
		Short:        "Upload documents, ask about them and quiz yourself on them",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("user", "", "user id owning the collections")
	root.PersistentFlags().Bool("json", false, "print results as JSON")

	root.AddCommand(
		a.loginCmd(),
		a.ingestCmd(),
		a.askCmd(),
		a.questionsCmd(),
		a.validateCmd(),
		a.collectionsCmd(),
		a.forgetCmd(),
	)
	return root
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google and print the resulting user id",
		Long: `Prints the Google consent URL, then reads the redirect address from
stdin, checks its state and exchanges the code for the account identity. Only
accounts with a verified email are accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, err := auth.NewGoogleProvider(a.cfg.Google, a.logger)
			if err != nil {
				return a.fail(cmd, err)
			}
			state, err := auth.NewState()
			if err != nil {
				return a.fail(cmd, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Open this URL in a browser, sign in, then paste the address you were redirected to:")
			fmt.Fprintln(out, provider.AuthCodeURL(state))
			fmt.Fprint(out, "redirect: ")

			redirected, err := readLine(cmd.InOrStdin())
			if err != nil {
				return a.fail(cmd, err)
			}
			code, err := auth.ParseCallback(redirected, state)
			if err != nil {
				a.logger.Warn("login callback rejected", "error", err)
				return err
			}

			identity, err := provider.Exchange(cmd.Context(), code)
			if errors.Is(err, auth.ErrUnverifiedEmail) {
				a.logger.Warn("login rejected", "error", err)
				return errors.New("email address is not verified")
			}
			if err != nil {
				return a.fail(cmd, err)
			}

			if asJSON(cmd) {
				return writeJSON(out, identity)
			}
			fmt.Fprintf(out, "signed in as %s (%s)\nuser id: %s\n", identity.Name, identity.Email, identity.ID)
			return nil
		},
	}
}

func (a *app) ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest --user ID --file PATH",
		Short: "Index a document into a new collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			return a.withService(cmd, func(ctx context.Context, svc *workspace.Service) error {
				id, err := svc.Ingest(ctx, ingestion.UploadedDocument{Filename: filepath.Base(path), Data: data})
				if err != nil {
					return err
				}
				if asJSON(cmd) {
					return writeJSON(cmd.OutOrStdout(), map[string]string{"collection": id})
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().String("file", "", "document to upload (.txt, .csv, .docx, .pdf)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask --user ID --collection ID --prompt TEXT",
		Short: "Answer a question from a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			collection, _ := cmd.Flags().GetString("collection")
			prompt, _ := cmd.Flags().GetString("prompt")

			return a.withService(cmd, func(ctx context.Context, svc *workspace.Service) error {
				resp, err := svc.Ask(ctx, collection, prompt)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON(cmd) {
					return writeJSON(out, resp)
				}
				fmt.Fprintln(out, resp.Answer)
				if len(resp.Sources) > 0 {
					fmt.Fprintln(out, "\nSources:")
					for _, src := range resp.Sources {
						fmt.Fprintf(out, "- %s#%d (%.3f)\n", src.Document, src.Index, src.Score)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().String("collection", "", "collection id returned by ingest")
	cmd.Flags().String("prompt", "", "question to answer")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func (a *app) questionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions --user ID --collection ID",
		Short: "Generate quiz questions from a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			collection, _ := cmd.Flags().GetString("collection")
			count, _ := cmd.Flags().GetInt("count")
			raw, _ := cmd.Flags().GetString("complexity")
			level, ok := prompts.ParseComplexity(raw)
			if !ok {
				return fmt.Errorf("unknown complexity %q, use Easy, Medium or Hard", raw)
			}

			return a.withService(cmd, func(ctx context.Context, svc *workspace.Service) error {
				questions, err := svc.GenerateQuestions(ctx, collection, count, level)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON(cmd) {
					return writeJSON(out, questions)
				}
				for i, q := range questions {
					fmt.Fprintf(out, "%d. %s\n", i+1, q)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("collection", "", "collection id returned by ingest")
	cmd.Flags().Int("count", 5, "number of questions to request")
	cmd.Flags().String("complexity", string(prompts.Easy), "Easy, Medium or Hard")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate --user ID --collection ID --question TEXT --answer TEXT",
		Short: "Grade an answer against a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			collection, _ := cmd.Flags().GetString("collection")
			question, _ := cmd.Flags().GetString("question")
			answer, _ := cmd.Flags().GetString("answer")

			return a.withService(cmd, func(ctx context.Context, svc *workspace.Service) error {
				result, err := svc.ValidateAnswer(ctx, collection, question, answer)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON(cmd) {
					return writeJSON(out, result)
				}
				fmt.Fprintf(out, "Verdict: %s\n", result.Verdict)
				if result.Feedback != "" {
					fmt.Fprintf(out, "Feedback: %s\n", result.Feedback)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("collection", "", "collection id returned by ingest")
	cmd.Flags().String("question", "", "question being answered")
	cmd.Flags().String("answer", "", "answer to grade")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func (a *app) collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections --user ID",
		Short: "List the user's collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *workspace.Service) error {
				infos, err := svc.Collections(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON(cmd) {
					return writeJSON(out, infos)
				}
				if len(infos) == 0 {
					fmt.Fprintln(out, "no collections")
					return nil
				}
				for _, info := range infos {
					fmt.Fprintf(out, "%s  %s  %d chunks  %s\n", info.ID, info.Source, info.Chunks, info.CreatedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
}

func (a *app) forgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget --user ID --collection ID",
		Short: "Delete a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			collection, _ := cmd.Flags().GetString("collection")
			return a.withService(cmd, func(ctx context.Context, svc *workspace.Service) error {
				if err := svc.Forget(ctx, collection); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", collection)
				return nil
			})
		},
	}
	cmd.Flags().String("collection", "", "collection id to delete")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read redirect: %w", err)
	}
	return strings.TrimSpace(line), nil
}
