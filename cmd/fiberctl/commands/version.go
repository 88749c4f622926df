package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strandrt/fibercore/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display the version, commit hash, and build metadata for fiberctl.`,
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("fiberctl version %s", build.Version)

	if build.CommitHash != "" {
		fmt.Printf(" commit=%s", build.CommitHash)
	}
	fmt.Printf(" go=%s", build.GoVersionStr)

	if tags := build.Tags(); len(tags) > 0 {
		fmt.Printf(" tags=%s", build.RawTags)
	}

	fmt.Println()
}
