// Command tganalytics runs the Telegram analytics gateway and its operator
// tooling.
//
//	@title			Telegram Analytics Gateway
//	@version		1.0
//	@description	Multi-tenant HTTP gateway that logs users into Telegram and reports per-message engagement.
//	@BasePath		/
package main

import (
	"github.com/tbourn/tg-analytics-gateway/internal/cli"
)

// Version is set via ldflags during build, e.g. -X main.Version=v1.2.0.
var Version = "dev"

func main() {
	cli.Init(Version)
	cli.Execute()
}
