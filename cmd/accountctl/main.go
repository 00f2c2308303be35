package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/getkayan/accountguard"
	"github.com/getkayan/accountguard/core/config"
	"github.com/getkayan/accountguard/core/logger"
)

// Version is set at build time
var Version = accountguard.Version

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "version":
		fmt.Printf("accountctl %s\n", Version)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	cli := &CLI{
		Config:       cfg,
		Out:          os.Stdout,
		ReadPassword: terminalPassword,
		Logger:       logger.Log,
	}

	if err := cli.Run(cmd, args); err != nil {
		if errors.Is(err, errUnknownCommand) {
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
			printUsage()
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		logger.Log.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`accountctl - account security command line interface

Usage:
  accountctl <command> [arguments] [options]

Environment Variables:
  STORE_TYPE        memory, sqlite, postgres, mysql, redis or mongo (default: sqlite)
  DSN               SQL data source (default: accountguard.db)
  REDIS_ADDR        Redis address when STORE_TYPE=redis
  MONGO_URI         MongoDB URI when STORE_TYPE=mongo
  LOG_LEVEL         debug, info, warn or error
  MAX_ATTEMPTS      failed logins before lockout (default: 5)
  ATTEMPT_WINDOW    sliding window for failed logins (default: 15m)
  LOCKOUT_DURATION  how long a lockout lasts (default: 30m)

Commands:
  register  --name=NAME --email=EMAIL [--password=PWD]
  login     --email=EMAIL [--password=PWD] [--source=SRC]
  logout
  whoami
  verify    <token>
  resend
  forgot    --email=EMAIL
  reset     <token> [--password=PWD]
  status    [--email=EMAIL]
  sweep
  audit
    query   [--email=EMAIL] [--type=TYPE] [--limit=N]
    export  [--email=EMAIL] [--format=json|csv]
  version
  help

Passwords not given with --password are read from the terminal without echo.
Verification and reset tokens are printed to standard output.
`)
}
