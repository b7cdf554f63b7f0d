package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hirmir/internal/config"
	"hirmir/internal/diag"
	"hirmir/internal/driver"
	"hirmir/internal/hirfixture"
	"hirmir/internal/mir"
	"hirmir/internal/mirwire"
	"hirmir/internal/source"
)

var (
	lowerConfigPath    string
	lowerEmit          string
	lowerOutPath       string
	lowerJobs          int
	lowerTargetVersion string
	lowerFullValidate  bool
)

func init() {
	lowerCmd.Flags().StringVar(&lowerConfigPath, "config", "", "path to a hirmir.toml manifest")
	lowerCmd.Flags().StringVar(&lowerEmit, "emit", "text", "output format (text|mir.bin)")
	lowerCmd.Flags().StringVarP(&lowerOutPath, "out", "o", "", "output file (default stdout)")
	lowerCmd.Flags().IntVar(&lowerJobs, "jobs", 0, "parallel lowering workers (0 = manifest/default)")
	lowerCmd.Flags().StringVar(&lowerTargetVersion, "target-version", "", "emplace lowering style (1.19|1.29|1.39)")
	lowerCmd.Flags().BoolVar(&lowerFullValidate, "full-validation", false, "run the assigned-before-use dataflow check")
}

var lowerCmd = &cobra.Command{
	Use:   "lower <fixture.json>...",
	Short: "Lower HIR fixtures to validated MIR",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveLowerConfig(cmd)
		if err != nil {
			return err
		}

		maxDiags, _ := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
		colorMode, _ := cmd.Root().PersistentFlags().GetString("color")
		bag := diag.NewBag(maxDiags)

		out := cmd.OutOrStdout()
		if lowerOutPath != "" {
			f, err := os.Create(lowerOutPath)
			if err != nil {
				return fmt.Errorf("hirmirc: %w", err)
			}
			defer f.Close()
			out = f
		}

		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("hirmirc: %w", err)
			}
			fx, err := hirfixture.Decode(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("hirmirc: %s: %w", path, err)
			}

			p := &driver.Pipeline{
				Resolver: fx.Resolver,
				Types:    fx.Types,
				Symbols:  fx.Symbols,
				Reporter: bag,
				Config:   cfg,
			}
			mod, err := p.Lower(cmd.Context(), fx.Module)
			if err != nil {
				diag.FormatPretty(cmd.ErrOrStderr(), bag, source.NewFileSet(), diag.PrettyOptions{
					Color: colorEnabled(colorMode, os.Stderr),
				})
				return fmt.Errorf("hirmirc: %s: %w", path, err)
			}

			switch lowerEmit {
			case "text":
				if err := mir.DumpModule(out, mod, fx.Types); err != nil {
					return fmt.Errorf("hirmirc: %w", err)
				}
			case "mir.bin":
				if err := mirwire.Encode(out, mod); err != nil {
					return fmt.Errorf("hirmirc: %w", err)
				}
			default:
				return fmt.Errorf("hirmirc: unsupported --emit %q (must be text or mir.bin)", lowerEmit)
			}
		}
		return nil
	},
}

// resolveLowerConfig layers flags over the manifest over Default().
func resolveLowerConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if lowerConfigPath != "" {
		loaded, err := config.Load(lowerConfigPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("hirmirc: %w", err)
		}
		cfg = loaded
	}
	if lowerTargetVersion != "" {
		v, err := config.ParseTargetVersion(lowerTargetVersion)
		if err != nil {
			return config.Config{}, fmt.Errorf("hirmirc: %w", err)
		}
		cfg.TargetVersion = v
	}
	if lowerJobs > 0 {
		cfg.Jobs = lowerJobs
	}
	if cmd.Flags().Changed("full-validation") {
		cfg.FullValidation = lowerFullValidate
	}
	return cfg, nil
}
