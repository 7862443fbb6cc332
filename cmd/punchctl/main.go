package main

import (
	"context"

	"punchpass-backend/cmd/punchctl/commands"
	"punchpass-backend/lib/serviceutil"
	"punchpass-backend/lib/telemetry"
)

func main() {
	err := telemetry.SetupFromEnv(context.Background(), "punchctl")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
