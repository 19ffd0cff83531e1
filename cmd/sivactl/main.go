package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/arsansys/siva/internal/admincli"
	"github.com/arsansys/siva/internal/server/config"
)

const usage = `usage: sivactl <command> [args] [flags]

commands:
  create-user <username> <email> [role]   provision a user (password is prompted)
  revoke <token>                          revoke an access token
  find-revocation <username>              show the latest revocation for a user
  purge                                   delete expired revocation records

flags are shared with the server (-d DSN, -s secret key, -c config file).`

// positionalArgs returns the leading non-flag arguments; parsing stops at the
// first flag, which is left to config.LoadConfig.
func positionalArgs(args []string) []string {
	var out []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			break
		}
		out = append(out, arg)
	}
	return out
}

func main() {

	args := positionalArgs(os.Args[1:])
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.LoadConfig()

	app, err := admincli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.Run(context.Background(), args[0], args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}
