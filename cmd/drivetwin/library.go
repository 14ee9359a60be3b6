package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/drivetwin/pkg/cli"
	"mercator-hq/drivetwin/pkg/policy/library"
)

var libraryFlags struct {
	dir         string
	file        string
	description string
	limit       int
	format      string
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the policy library",
	Long: `Manage the library of accepted policies.

Every accepted policy is prepended, together with the built-in primitives,
to the code of the programs the run command loads, so policies can call the
functions defined by earlier ones.

Subcommands:
  add     - Add a policy or a new version of one
  list    - List accepted policies
  search  - Rank policies by words of their name and description
  show    - Print the code of a policy`,
}

var libraryAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a policy to the library",
	Long: `Add a policy to the library. Re-adding an existing name stores a new
version and replaces the previous code.

Examples:
  drivetwin library add keep_right --file keep_right.lua --description "keep to the rightmost free lane"`,
	Args: cobra.ExactArgs(1),
	RunE: addPolicy,
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accepted policies",
	RunE:  listPolicies,
}

var librarySearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search the library",
	Args:  cobra.MinimumNArgs(1),
	RunE:  searchPolicies,
}

var libraryShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print the code of a policy",
	Args:  cobra.ExactArgs(1),
	RunE:  showPolicy,
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(libraryAddCmd, libraryListCmd, librarySearchCmd, libraryShowCmd)

	libraryCmd.PersistentFlags().StringVar(&libraryFlags.dir, "dir", "", "library directory (default: policy.library_dir)")

	libraryAddCmd.Flags().StringVarP(&libraryFlags.file, "file", "f", "", "Lua file with the policy code (required)")
	libraryAddCmd.Flags().StringVarP(&libraryFlags.description, "description", "d", "", "what the policy does")
	_ = libraryAddCmd.MarkFlagRequired("file")

	for _, c := range []*cobra.Command{libraryListCmd, librarySearchCmd} {
		c.Flags().StringVar(&libraryFlags.format, "format", "text", "output format: text, json, csv")
	}
	librarySearchCmd.Flags().IntVarP(&libraryFlags.limit, "limit", "k", 5, "max results")
}

func openLibrary() (*library.Library, error) {
	dir := libraryFlags.dir
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		dir = cfg.Policy.LibraryDir
	}
	if dir == "" {
		return nil, cli.NewConfigError("policy.library_dir", "no library directory configured (set policy.library_dir or --dir)")
	}
	lib, err := library.Open(dir, true, nil)
	if err != nil {
		return nil, cli.NewCommandError("library", err)
	}
	return lib, nil
}

func addPolicy(cmd *cobra.Command, args []string) error {
	code, err := os.ReadFile(libraryFlags.file)
	if err != nil {
		return cli.NewConfigError("file", err.Error())
	}
	lib, err := openLibrary()
	if err != nil {
		return err
	}

	entry, err := lib.Add(args[0], string(code), libraryFlags.description)
	if err != nil {
		return cli.NewCommandError("library", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s version %d (%d policies)\n", entry.Name, entry.Version, lib.Len())
	return nil
}

func listPolicies(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	return writeEntries(cmd, lib.List())
}

func searchPolicies(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	return writeEntries(cmd, lib.Search(strings.Join(args, " "), libraryFlags.limit))
}

func writeEntries(cmd *cobra.Command, entries []library.Entry) error {
	format, err := cli.ParseOutputFormat(libraryFlags.format)
	if err != nil {
		return err
	}
	table := &cli.Table{Columns: []string{"name", "version", "added_at", "description"}}
	for _, e := range entries {
		table.Append(e.Name, e.Version, e.AddedAt.Format(time.RFC3339), e.Description)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

func showPolicy(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	entry, err := lib.Get(args[0])
	if err != nil {
		return cli.NewCommandError("library", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(entry.Code, "\n"))
	return err
}
