package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	"github.com/smooai/undot"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

type options struct {
	output    string
	dir       string
	env       string
	envPrefix string
	get       string
	raw       bool
}

func newRootCommand(ctx context.Context, out io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "undot [files...]",
		Short: "merge layered config files and expand dotted keys",
		Long: `undot merges JSON and YAML config files in the given order, later files
taking precedence, and expands dotted keys such as "db.pool.size" into
nested objects. Without files, the layered config directory is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return run(ctx, opts, args, out)
		},
	}

	cmd.PersistentFlags().BoolP(verboseFlag, "v", false, "verbose output")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "layered config directory (overrides UNDOT_CONFIG_DIR)")
	cmd.Flags().StringVar(&opts.env, "env", "", "config environment (overrides UNDOT_CONFIG_ENV)")
	cmd.Flags().StringVar(&opts.envPrefix, "env-prefix", "", "also read env vars with this prefix, e.g. APP_")
	cmd.Flags().StringVar(&opts.get, "get", "", "print only the value at this dotted path")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "merge without expanding dotted keys")
	return cmd
}

func run(ctx context.Context, opts options, files []string, out io.Writer) error {
	if opts.output != "json" && opts.output != "yaml" {
		return fmt.Errorf("unsupported output format %q", opts.output)
	}

	env := maps.Clone(osEnviron())
	if opts.dir != "" {
		env["UNDOT_CONFIG_DIR"] = opts.dir
	}
	if opts.env != "" {
		env["UNDOT_CONFIG_ENV"] = opts.env
	}

	var providers []undot.Provider
	if len(files) > 0 {
		for _, f := range files {
			providers = append(providers, undot.FileProvider(f))
		}
	} else {
		layered, err := undot.LayeredFileProvidersFromEnv(env)
		if err != nil {
			return err
		}
		providers = layered
	}
	if opts.envPrefix != "" {
		providers = append(providers, undot.EnvProvider(undot.WithEnvPrefix(opts.envPrefix), undot.WithEnvironment(env)))
	}

	aggOpts := []undot.AggregatorOption{undot.WithProviders(providers...)}
	if opts.raw {
		aggOpts = append(aggOpts, undot.WithPostProcessors())
	}
	cfg, err := undot.NewAggregator(aggOpts...).Config(ctx)
	if err != nil {
		return err
	}

	jsonOut, err := cfg.MarshalJSON()
	if err != nil {
		return err
	}

	if opts.get != "" {
		res := gjson.GetBytes(jsonOut, opts.get)
		if !res.Exists() {
			return fmt.Errorf("path %q not found", opts.get)
		}
		if opts.output == "yaml" {
			return writeYAML(out, res.Value())
		}
		return writeJSON(out, []byte(res.Raw))
	}

	if opts.output == "yaml" {
		return writeYAML(out, cfg)
	}
	return writeJSON(out, jsonOut)
}

func writeJSON(out io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := out.Write(buf.Bytes())
	return err
}

func writeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// osEnviron is replaced in tests.
var osEnviron = func() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if name, value, ok := strings.Cut(e, "="); ok {
			env[name] = value
		}
	}
	return env
}
