package main

import (
	"context"

	"kevoctl/cmd/kevoctl/commands"
	"kevoctl/lib/osutil"
	"kevoctl/lib/telemetry"
)

func main() {
	ctx := osutil.SignalContext()

	telemetry.InitSlog(false)
	tel, err := telemetry.SetupFromEnv(ctx, "kevoctl")
	if err != nil {
		osutil.Fatal("setup telemetry", err)
	}
	defer tel.Shutdown(context.Background())

	commands.ExecuteContext(ctx)
}
