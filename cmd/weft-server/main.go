/*
Copyright Weft Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main Weft.
package main

import (
	"github.com/spf13/cobra"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/weft-social/weft/cmd/weft-server/startcmd"
)

var logger = log.New("weft-server")

func main() {
	rootCmd := &cobra.Command{
		Use: "weft-server",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.AddCommand(startcmd.GetStartCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to run Weft server.", log.WithError(err))
	}
}
