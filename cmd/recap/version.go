package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hrygo/recap/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Long:  "Print build information. With --min, exit non-zero unless this build is at least the given semantic version.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), version.StringFull())
		minVersion, _ := cmd.Flags().GetString("min")
		return checkMinVersion(version.Version, minVersion)
	},
}

func init() {
	versionCmd.Flags().String("min", "", "required minimum version, e.g. 0.3.0")
}

// checkMinVersion fails when current is not a semantic version or is older than want.
// An empty want always passes.
func checkMinVersion(current, want string) error {
	if want == "" {
		return nil
	}
	if !version.IsValid(want) {
		return fmt.Errorf("invalid minimum version %q", want)
	}
	if !version.IsValid(current) {
		return fmt.Errorf("build version %q is not a semantic version", current)
	}
	if !version.IsVersionGreaterOrEqualThan(current, want) {
		return fmt.Errorf("build version %s is older than %s", current, want)
	}
	return nil
}
