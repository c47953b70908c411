package cli

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at release time:
//
//	go build -ldflags "-X github.com/ppiankov/stewardgate/internal/cli.version=v1.2.3"
var version string

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, _ := debug.ReadBuildInfo()
		out, err := json.MarshalIndent(buildVersion(info), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func currentVersion() string {
	info, _ := debug.ReadBuildInfo()
	return buildVersion(info).Version
}

type versionInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// buildVersion prefers the linker-set version, then the module version
// recorded by go install, then "dev".
func buildVersion(info *debug.BuildInfo) versionInfo {
	v := versionInfo{
		Name:      "stewardgate",
		Version:   version,
		GoVersion: runtime.Version(),
	}
	if info == nil {
		if v.Version == "" {
			v.Version = "dev"
		}
		return v
	}

	if v.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v.Version = info.Main.Version
	}
	if v.Version == "" {
		v.Version = "dev"
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			v.Commit = s.Value
		case "vcs.modified":
			v.Modified = s.Value == "true"
		}
	}
	return v
}
