package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/syllabus/internal/config"
	"github.com/kailas-cloud/syllabus/internal/version"
)

var envFlag string

var rootCmd = &cobra.Command{
	Use:   "syllabusctl",
	Short: "Manage the syllabus index and topic catalog",
	Long: `syllabusctl administers the data behind the syllabus search service.

It creates and drops the chunk index, loads the topic catalog and
embedded chunks from seed files, deletes chunks, and checks topic paths.

Configuration is read the same way as the server: config/<env>.yaml,
selected by --env or the ENV variable.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", config.GetEnv(), "configuration environment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
