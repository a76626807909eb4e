package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/api"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJobDetail(cmd, job)
			return nil
		},
	}
}

func printJobDetail(cmd *cobra.Command, job *api.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "File:     %s (%s)\n", job.Filename, formatSize(job.Size))
	fmt.Fprintf(out, "Profile:  %s (%s)\n", job.DeviceProfile, job.DeviceProfileLabel)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Progress: %s\n", describeProgress(*job))
	fmt.Fprintf(out, "Created:  %s\n", formatWhen(job.CreatedAt))
	fmt.Fprintf(out, "Updated:  %s\n", formatWhen(job.UpdatedAt))
	if job.Output != nil {
		fmt.Fprintf(out, "Artifact: %s (%s), downloaded %d times\n",
			job.Output.Filename, formatSize(job.Output.Size), job.DownloadCount)
	}
	if job.Failure != nil {
		fmt.Fprintf(out, "Failure:  %s (%s)\n", job.Failure.Message, job.Failure.Kind)
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s is now %s\n", job.ID, job.Status)
			return nil
		},
	}
}

func newDismissCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <job-id>",
		Short: "Hide a finished job from the queue view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Dismiss(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s dismissed\n", job.ID)
			return nil
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download a finished job's artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			path, err := client.Download(cmd.Context(), args[0], destDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&destDir, "dest", "d", ".", "Destination directory")
	return cmd
}
