package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var profile string
	var options []string

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a file for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.client()
			if err != nil {
				return err
			}

			opts, err := parseOptionFlags(options)
			if err != nil {
				return err
			}

			job, err := api.Submit(cmd.Context(), args[0], profile, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as job %s (%s)\n",
				job.Filename, job.ID, job.DeviceProfileLabel)
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "KPW5", "Target device profile id")
	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "Converter option as key=value (repeatable)")
	return cmd
}

func parseOptionFlags(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, entry := range raw {
		key, value, found := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid option %q: expected key=value", entry)
		}
		if !found {
			value = "true"
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
