// Command havenctl operates on the site document from the shell:
// exporting, importing, dumping to SQL, clearing and sizing it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"darkhaven/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataPath string

	root := &cobra.Command{
		Use:           "havenctl",
		Short:         "Manage the Dark Haven site document",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataPath, "data", "data/darkhaven.json", "path to the site document")

	root.AddCommand(
		newExportCmd(&dataPath),
		newImportCmd(&dataPath),
		newSQLDumpCmd(&dataPath),
		newClearCmd(&dataPath),
		newSizeCmd(&dataPath),
	)
	return root
}

func openStore(path string) (*store.Store, error) {
	backend, err := store.NewFileBackend(path, true)
	if err != nil {
		return nil, err
	}
	return store.Open(backend)
}

func newExportCmd(dataPath *string) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the document as a dated JSON export",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*dataPath)
			if err != nil {
				return err
			}
			serialized, err := st.Export()
			if err != nil {
				return err
			}
			if out == "" {
				out = st.ExportFilename()
			}
			if out == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), serialized)
				return nil
			}
			if err := os.WriteFile(out, []byte(serialized), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default dated filename, - for stdout)")
	return cmd
}

func newImportCmd(dataPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the document with a previously exported one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			st, err := openStore(*dataPath)
			if err != nil {
				return err
			}
			if err := st.Import(string(raw)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s into %s\n", args[0], *dataPath)
			return nil
		},
	}
}

func newSQLDumpCmd(dataPath *string) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "sqldump",
		Short: "Write the document tables as SQL INSERT statements",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*dataPath)
			if err != nil {
				return err
			}
			dump, err := st.ExportSQL()
			if err != nil {
				return err
			}
			if out == "" {
				out = st.SQLFilename()
			}
			if out == "-" {
				fmt.Fprint(cmd.OutOrStdout(), dump)
				return nil
			}
			if err := os.WriteFile(out, []byte(dump), 0o644); err != nil {
				return fmt.Errorf("write dump: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dumped to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default dated filename, - for stdout)")
	return cmd
}

func newClearCmd(dataPath *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Reset the document to its defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear %s without --yes", *dataPath)
			}
			st, err := openStore(*dataPath)
			if err != nil {
				return err
			}
			if err := st.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", *dataPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newSizeCmd(dataPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Report the serialized document size",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*dataPath)
			if err != nil {
				return err
			}
			bytes, readable, err := st.Size()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", readable, bytes)
			return nil
		},
	}
}
