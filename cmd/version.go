package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		commit, built := CommitSHA, BuildDate
		// Fall back to VCS stamps when built without ldflags.
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				switch {
				case s.Key == "vcs.revision" && commit == "unknown":
					commit = s.Value
				case s.Key == "vcs.time" && built == "unknown":
					built = s.Value
				}
			}
		}
		fmt.Printf("face-attendance %s\n", Version)
		fmt.Printf("  Commit:   %s\n", commit)
		fmt.Printf("  Built:    %s\n", built)
		fmt.Printf("  Go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Detector: %s\n", detectorBuild())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
