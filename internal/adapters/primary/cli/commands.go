package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"model-artefact-registry/internal/core/domain"
)

type app struct {
	open       Opener
	jsonOutput bool
}

// run opens the registry for a single command and releases it afterwards.
func (a *app) run(fn func(ctx context.Context, reg Registry, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		reg, release, err := a.open(ctx)
		if err != nil {
			return err
		}
		defer release()

		return fn(ctx, reg, cmd, args)
	}
}

// NewCommand creates the modelctl command tree.
//
// Commands provided:
//   - create <id> <name> [--description] [--tags]
//   - get <id>
//   - update <id> [--name] [--description] [--tags]
//   - delete <id>
//   - list
//   - artefact upload <id> <file>
//   - artefact download <id> <output-file>
//
// Global flags: --json, --server, --username, --password. The connection
// flags are bound into v so that they override the MODELCTL_* environment.
func NewCommand(v *viper.Viper, open Opener) *cobra.Command {
	a := &app{open: open}

	cmd := &cobra.Command{
		Use:           "modelctl",
		Short:         "Manage model records and artefacts",
		Long:          "Create, inspect, update and delete model records, and store their artefacts, either directly against the configured backends or through a registry server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output in JSON format")
	cmd.PersistentFlags().String("server", "", "Registry server URL; empty runs against the local backends")
	cmd.PersistentFlags().String("username", "", "Username for the registry server")
	cmd.PersistentFlags().String("password", "", "Password for the registry server")

	_ = v.BindPFlag("MODELCTL_SERVER", cmd.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("MODELCTL_USERNAME", cmd.PersistentFlags().Lookup("username"))
	_ = v.BindPFlag("MODELCTL_PASSWORD", cmd.PersistentFlags().Lookup("password"))

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})

	cmd.AddCommand(a.createCmd())
	cmd.AddCommand(a.getCmd())
	cmd.AddCommand(a.updateCmd())
	cmd.AddCommand(a.deleteCmd())
	cmd.AddCommand(a.listCmd())
	cmd.AddCommand(a.artefactCmd())

	return cmd
}

// Execute runs the command, prints any error to stderr and returns the
// exit code.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return ExitCodeFromError(err)
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

func (a *app) createCmd() *cobra.Command {
	var description, tags string

	cmd := &cobra.Command{
		Use:   "create <id> <name>",
		Short: "Create a model record",
		Args:  exactArgs(2),
	}
	cmd.RunE = a.run(func(ctx context.Context, reg Registry, cmd *cobra.Command, args []string) error {
		var desc *string
		if cmd.Flags().Changed("description") {
			desc = &description
		}

		var parsed domain.Tags
		if cmd.Flags().Changed("tags") {
			var err error
			if parsed, err = parseTags(tags); err != nil {
				return err
			}
		}

		model, err := reg.Create(ctx, args[0], args[1], desc, parsed)
		if err != nil {
			return err
		}
		return outputRecord(cmd.OutOrStdout(), model, a.jsonOutput)
	})

	cmd.Flags().StringVar(&description, "description", "", "Model description")
	cmd.Flags().StringVar(&tags, "tags", "", `Tags as a JSON object or k=v,k2=v2`)
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a model record",
		Args:  exactArgs(1),
	}
	cmd.RunE = a.run(func(ctx context.Context, reg Registry, cmd *cobra.Command, args []string) error {
		model, ok, err := reg.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return &notFoundError{id: args[0]}
		}
		return outputRecord(cmd.OutOrStdout(), model, a.jsonOutput)
	})
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var name, description, tags string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a model record",
		Long:  "Update the name, description or tags of a model record. Only the flags given are changed.",
		Args:  exactArgs(1),
	}
	cmd.RunE = a.run(func(ctx context.Context, reg Registry, cmd *cobra.Command, args []string) error {
		updates := map[string]interface{}{}
		if cmd.Flags().Changed("name") {
			updates[domain.FieldName] = name
		}
		if cmd.Flags().Changed("description") {
			updates[domain.FieldDescription] = description
		}
		if cmd.Flags().Changed("tags") {
			parsed, err := parseTags(tags)
			if err != nil {
				return err
			}
			updates[domain.FieldTags] = map[string]interface{}(parsed)
		}
		if len(updates) == 0 {
			return usageError("nothing to update; pass --name, --description or --tags")
		}

		model, ok, err := reg.Update(ctx, args[0], updates)
		if err != nil {
			return err
		}
		if !ok {
			return &notFoundError{id: args[0]}
		}
		return outputRecord(cmd.OutOrStdout(), model, a.jsonOutput)
	})

	cmd.Flags().StringVar(&name, "name", "", "New model name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&tags, "tags", "", `New tags as a JSON object or k=v,k2=v2`)
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a model record",
		Long:  "Delete a model record. The model's artefact, if any, is left in place.",
		Args:  exactArgs(1),
	}
	cmd.RunE = a.run(func(ctx context.Context, reg Registry, cmd *cobra.Command, args []string) error {
		model, ok, err := reg.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return &notFoundError{id: args[0]}
		}
		if a.jsonOutput {
			return outputRecord(cmd.OutOrStdout(), model, true)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Model %s deleted\n", model.ModelID)
		return nil
	})
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List model records",
		Args:  exactArgs(0),
	}
	cmd.RunE = a.run(func(ctx context.Context, reg Registry, cmd *cobra.Command, args []string) error {
		models, err := reg.List(ctx)
		if err != nil {
			return err
		}
		return outputRecords(cmd.OutOrStdout(), models, a.jsonOutput)
	})
	return cmd
}

func (a *app) artefactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artefact",
		Short: "Upload or download model artefacts",
	}
	cmd.AddCommand(a.uploadCmd())
	cmd.AddCommand(a.downloadCmd())
	return cmd
}

func (a *app) uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <id> <file>",
		Short: "Upload a file as the model's artefact",
		Long:  "Upload a file as the model's artefact, replacing any previous one. The model record does not need to exist.",
		Args:  exactArgs(2),
	}
	cmd.RunE = a.run(func(ctx context.Context, reg Registry, cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			return usageError("open artefact file: %v", err)
		}
		defer f.Close()

		key, err := reg.UploadArtefact(ctx, args[0], f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Artefact %s uploaded successfully\n", key)
		return nil
	})
	return cmd
}

func (a *app) downloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <id> <output-file>",
		Short: "Download the model's artefact to a file",
		Args:  exactArgs(2),
	}
	cmd.RunE = a.run(func(ctx context.Context, reg Registry, cmd *cobra.Command, args []string) error {
		artefact, err := reg.DownloadArtefact(ctx, args[0])
		if err != nil {
			return err
		}
		defer artefact.Body.Close()

		if err := writeFile(args[1], artefact.Body); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Artefact %s downloaded successfully\n", artefact.Key)
		return nil
	})
	return cmd
}

// writeFile copies body into a temporary file beside path and renames it
// into place, so a failed download never leaves a truncated file.
func writeFile(path string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".modelctl-*")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("download artefact: %w: %w", domain.ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// parseTags accepts either a JSON object or the k=v,k2=v2 shorthand.
func parseTags(s string) (domain.Tags, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") {
		dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
		dec.UseNumber()
		var raw map[string]interface{}
		if err := dec.Decode(&raw); err != nil {
			return nil, usageError("--tags is not a valid JSON object: %v", err)
		}
		return domain.NormalizeTags(raw)
	}
	return domain.ParseTagPairs(trimmed)
}
