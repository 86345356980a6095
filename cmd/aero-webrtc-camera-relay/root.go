package main

import (
	"github.com/spf13/cobra"
)

type lookupFunc func(string) (string, bool)

func newRootCmd(lookup lookupFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "aero-webrtc-camera-relay",
		Short: "Negotiate WebRTC camera streams through an SDP relay",
		// Errors are printed once by main.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		newServeCmd(lookup),
		newNegotiateCmd(lookup),
		newRelayCmd(),
		newVersionCmd(),
	)
	return root
}
