package main

import (
	"os"

	"k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/remoteops/cmd/ro-processor/app"
)

func main() {
	ctx := server.SetupSignalContext()
	if err := app.NewProcessorCommand(ctx).Execute(); err != nil {
		os.Exit(1)
	}
}
