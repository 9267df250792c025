package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"ssashelper/src/directors"
	"ssashelper/src/engine"
	"ssashelper/src/settings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// errFailed marks a run that completed but must exit non-zero. Its details
// have already been printed.
var errFailed = errors.New("failed")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(rawArgs []string, stdout, stderr io.Writer) int {
	args := settings.NewArguments()

	root := newRootCommand(args, rawArgs, stdout, stderr)
	root.SetArgs(rawArgs)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			color.New(color.FgRed).Fprintf(stderr, "Error: %s\n", err)
		}
		return 1
	}
	return 0
}

func newRootCommand(args *settings.Arguments, rawArgs []string, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "ssashelper",
		Short:         "Assemble, disassemble and clean Analysis Services projects",
		Version:       args.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadSettings(cmd, args, rawArgs)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&args.ConfigFile, "config", "", "Path to a YAML config file")
	flags.BoolVar(&args.Verbose, "verbose", args.Verbose, "Log every file read and written")
	flags.BoolVar(&args.Debug, "debug", args.Debug, "Enable debug mode")
	flags.StringVar(&args.LogDir, "logdir", args.LogDir, "Directory to store log files")
	flags.BoolVar(&args.PrintToScreen, "print", args.PrintToScreen, "Print log messages to screen")
	flags.StringVar(&args.JournalDir, "journaldir", args.JournalDir, "Directory of the operation journal (disabled when empty)")

	c := &cli{args: args, stdout: stdout, stderr: stderr}
	root.AddCommand(
		c.buildCommand(),
		c.disassembleCommand(),
		c.outputCommand(),
		c.cleanCommand(),
		c.validateCommand(),
		c.inventoryCommand(),
		c.verifyCommand(),
	)
	return root
}

// loadSettings overlays the config file, if any, and lets explicit flags win
// over its values.
func loadSettings(cmd *cobra.Command, args *settings.Arguments, rawArgs []string) error {
	if args.ConfigFile != "" {
		if err := settings.LoadConfigFile(args.ConfigFile, args); err != nil {
			return err
		}
		if err := cmd.Flags().Parse(rawArgs); err != nil {
			return err
		}
	}

	if err := args.Validate(); err != nil {
		return err
	}
	settings.SetSettings(args)
	return nil
}

type cli struct {
	args   *settings.Arguments
	stdout io.Writer
	stderr io.Writer
}

// withService runs fn against freshly initialized services.
func (c *cli) withService(fn func(s *directors.ProjectService) error) (err error) {
	manager, closer, err := directors.InitServices(c.args)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(manager.ProjectService)
}

func (c *cli) printDiagnostics(diagnostics []engine.Diagnostic) {
	warn := color.New(color.FgYellow)
	fail := color.New(color.FgRed)
	for _, d := range diagnostics {
		if d.Severity == engine.SeverityError {
			fail.Fprintln(c.stderr, d.String())
		} else {
			warn.Fprintln(c.stderr, d.String())
		}
	}
}

func (c *cli) buildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble a project, validate it and write the consolidated database file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := settings.Require("project", c.args.ProjectFile, "target", c.args.TargetFile); err != nil {
				return err
			}
			return c.withService(func(s *directors.ProjectService) error {
				result, err := s.Build(c.args.ProjectFile, c.args.TargetFile, c.args.Edition)
				if err != nil {
					return err
				}
				c.printDiagnostics(result.Diagnostics)
				if !result.OK {
					color.New(color.FgRed).Fprintf(c.stderr, "Build failed with %s diagnostics\n", humanize.Comma(int64(len(result.Diagnostics))))
					return errFailed
				}
				color.New(color.FgGreen).Fprintf(c.stdout, "Build succeeded: %s\n", result.Target)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&c.args.ProjectFile, "project", c.args.ProjectFile, "Project file (.dwproj) to assemble")
	cmd.Flags().StringVar(&c.args.TargetFile, "target", c.args.TargetFile, "Database file to write")
	cmd.Flags().StringVar(&c.args.Edition, "edition", c.args.Edition, "Target server edition (Enterprise, Standard, Developer, Evaluation)")
	return cmd
}

func (c *cli) disassembleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disassemble",
		Short: "Write every object of a project or database file into its own file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.args.ProjectFile == "" && c.args.InputFile == "" {
				return fmt.Errorf("one of --project or --input is required")
			}
			if err := settings.Require("out", c.args.OutputDir); err != nil {
				return err
			}
			return c.withService(func(s *directors.ProjectService) error {
				opts := engine.DisassembleOptions{AllowOverwrite: c.args.AllowOverwrite}
				manifest, err := s.Disassemble(c.args.ProjectFile, c.args.InputFile, c.args.OutputDir, opts, c.args.WriteManifest)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "Disassembled into %s\n", c.args.OutputDir)
				if manifest != "" {
					fmt.Fprintf(c.stdout, "Project file: %s\n", manifest)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&c.args.ProjectFile, "project", c.args.ProjectFile, "Project file (.dwproj) to disassemble")
	cmd.Flags().StringVar(&c.args.InputFile, "input", c.args.InputFile, "Consolidated database file to disassemble")
	cmd.Flags().StringVar(&c.args.OutputDir, "out", c.args.OutputDir, "Directory to write the object files to")
	cmd.Flags().BoolVar(&c.args.AllowOverwrite, "allow-overwrite", c.args.AllowOverwrite, "Let objects with the same name overwrite each other")
	cmd.Flags().BoolVar(&c.args.WriteManifest, "manifest", c.args.WriteManifest, "Also write the database descriptor and project file")
	return cmd
}

func (c *cli) outputCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "output",
		Short: "Assemble a project and write it as one database file without validation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := settings.Require("project", c.args.ProjectFile, "target", c.args.TargetFile); err != nil {
				return err
			}
			return c.withService(func(s *directors.ProjectService) error {
				if err := s.GenerateOutput(c.args.ProjectFile, c.args.TargetFile); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "Wrote %s\n", c.args.TargetFile)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&c.args.ProjectFile, "project", c.args.ProjectFile, "Project file (.dwproj) to assemble")
	cmd.Flags().StringVar(&c.args.TargetFile, "target", c.args.TargetFile, "Database file to write")
	return cmd
}

func (c *cli) cleanCommand() *cobra.Command {
	clean := &c.args.Clean
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Strip volatile metadata from project files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := settings.Require("dir", clean.Directory); err != nil {
				return err
			}
			return c.withService(func(s *directors.ProjectService) error {
				result, err := s.Clean(*clean)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "Inspected %s files, %s eligible, %s altered\n",
					humanize.Comma(int64(result.Inspected)),
					humanize.Comma(int64(result.Eligible)),
					humanize.Comma(int64(result.Altered)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&clean.Directory, "dir", clean.Directory, "Directory to clean")
	cmd.Flags().StringVar(&clean.Patterns, "patterns", clean.Patterns, "Comma separated file patterns")
	cmd.Flags().BoolVar(&clean.Recursive, "recursive", clean.Recursive, "Also clean subdirectories")
	cmd.Flags().BoolVar(&clean.RemoveDesignTimeNames, "remove-design-time-names", clean.RemoveDesignTimeNames, "Remove design-time-name attributes")
	cmd.Flags().BoolVar(&clean.RemoveDimensionAnnotations, "remove-dimension-annotations", clean.RemoveDimensionAnnotations, "Remove annotations from dimension files too")
	cmd.Flags().BoolVar(&clean.Backup, "backup", clean.Backup, "Write a timestamped backup before changing a file")
	return cmd
}

func (c *cli) validateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Assemble a project and validate it for an edition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := settings.Require("project", c.args.ProjectFile); err != nil {
				return err
			}
			return c.withService(func(s *directors.ProjectService) error {
				diagnostics, ok, err := s.Validate(c.args.ProjectFile, c.args.Edition)
				if err != nil {
					return err
				}
				c.printDiagnostics(diagnostics)
				fmt.Fprintf(c.stdout, "%s diagnostics\n", humanize.Comma(int64(len(diagnostics))))
				if !ok {
					return errFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&c.args.ProjectFile, "project", c.args.ProjectFile, "Project file (.dwproj) to validate")
	cmd.Flags().StringVar(&c.args.Edition, "edition", c.args.Edition, "Target server edition (Enterprise, Standard, Developer, Evaluation)")
	return cmd
}

func (c *cli) inventoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Summarize the objects of a project with content digests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := settings.Require("project", c.args.ProjectFile); err != nil {
				return err
			}
			return c.withService(func(s *directors.ProjectService) error {
				inv, err := s.Inventory(c.args.ProjectFile, c.args.TargetFile)
				if err != nil {
					return err
				}
				partitions := 0
				for _, cube := range inv.Cubes {
					for _, mg := range cube.MeasureGroups {
						partitions += len(mg.Partitions)
					}
				}
				fmt.Fprintf(c.stdout, "Database %s: %s dimensions, %s cubes, %s partitions\n",
					inv.Database.Name,
					humanize.Comma(int64(len(inv.Dimensions))),
					humanize.Comma(int64(len(inv.Cubes))),
					humanize.Comma(int64(partitions)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&c.args.ProjectFile, "project", c.args.ProjectFile, "Project file (.dwproj) to summarize")
	cmd.Flags().StringVar(&c.args.TargetFile, "out", c.args.TargetFile, "BSON file to write the inventory to")
	return cmd
}

func (c *cli) verifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a project survives a disassemble and assemble round trip",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := settings.Require("project", c.args.ProjectFile); err != nil {
				return err
			}
			return c.withService(func(s *directors.ProjectService) error {
				diffs, err := s.Verify(c.args.ProjectFile)
				if err != nil {
					return err
				}
				if len(diffs) > 0 {
					for _, d := range diffs {
						color.New(color.FgRed).Fprintln(c.stderr, d)
					}
					return errFailed
				}
				color.New(color.FgGreen).Fprintln(c.stdout, "Round trip verified")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&c.args.ProjectFile, "project", c.args.ProjectFile, "Project file (.dwproj) to verify")
	return cmd
}
