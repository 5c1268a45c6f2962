package cmd

import (
	"flag"
	"fmt"

	"github.com/golang/glog"
	"github.com/sergev/swpll/adapter"
	"github.com/sergev/swpll/config"
	"github.com/spf13/cobra"
)

var (
	configFile  string
	profileName string
	backendName string

	profile *config.Profile
)

var rootCmd = &cobra.Command{
	Use:   "swpll",
	Short: "A software PLL which locks a fractional-N synthesizer to a reference clock",
	Long: "The swpll tool runs a software phase locked loop: it time-stamps reference clock edges\n" +
		"through a USB bridge and steers the fractional divider of an application PLL\n" +
		"so that its output tracks the reference.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		profile, err = config.Initialize(configFile, profileName)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to initialize config: %w", err))
		}
		if backendName != "" {
			profile.Backend = backendName
		}
		glog.V(1).Infof("Profile %q from %s, backend %q", profile.Name, config.Path, profile.Backend)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		glog.Flush()
	},
}

// openBridge connects to the backend named in the profile.
func openBridge() (adapter.Bridge, error) {
	if profile.Backend == "sim" {
		return newSim(0)
	}
	b, err := adapter.Find(profile.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w (known backends: %v, sim)", err, adapter.Names())
	}
	return b, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (default ~/.swpll)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "configuration profile (default from config)")
	rootCmd.PersistentFlags().StringVarP(&backendName, "backend", "b", "", "bridge backend: auto, serial, usb or sim")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}
