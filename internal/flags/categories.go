package flags

import "github.com/urfave/cli/v2"

const (
	APICategory        = "HTTP SURFACE"
	NetworkingCategory = "EXECUTION NODES"
	LoggingCategory    = "LOGGING AND DEBUGGING"
	MiscCategory       = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
