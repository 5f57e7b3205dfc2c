package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/batterydied/chatter/internal/daemon"
	"github.com/batterydied/chatter/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	socketFlag := flag.String("socket", "", "unix socket path (defaults to the profile socket)")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Profile: name, SocketPath: *socketFlag}),
	)

	app.Run()
}
