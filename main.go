package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/xlatbench/cmd"
	"grimm.is/xlatbench/internal/brand"
	"grimm.is/xlatbench/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "up":
		upFlags := flag.NewFlagSet("up", flag.ExitOnError)
		configFile := upFlags.String("config", "", "Configuration file")
		upFlags.StringVar(configFile, "c", "", "Configuration file (short)")
		strict := upFlags.Bool("strict", false, "Fail if a namespace already exists instead of replacing it")
		timeout := upFlags.Duration("timeout", 0, "Abort the build after this long")
		debug := upFlags.Bool("debug", false, "Enable debug logging")
		upFlags.Parse(os.Args[2:])
		setupLogging(*debug)
		err = cmd.RunUp(*configFile, *strict, *timeout)

	case "down":
		downFlags := flag.NewFlagSet("down", flag.ExitOnError)
		configFile := downFlags.String("config", "", "Configuration file")
		downFlags.StringVar(configFile, "c", "", "Configuration file (short)")
		debug := downFlags.Bool("debug", false, "Enable debug logging")
		downFlags.Parse(os.Args[2:])
		setupLogging(*debug)
		err = cmd.RunDown(*configFile)

	case "verify":
		verifyFlags := flag.NewFlagSet("verify", flag.ExitOnError)
		configFile := verifyFlags.String("config", "", "Configuration file")
		verifyFlags.StringVar(configFile, "c", "", "Configuration file (short)")
		debug := verifyFlags.Bool("debug", false, "Enable debug logging")
		verifyFlags.Parse(os.Args[2:])
		setupLogging(*debug)
		err = cmd.RunVerify(*configFile)

	case "bench":
		benchFlags := flag.NewFlagSet("bench", flag.ExitOnError)
		configFile := benchFlags.String("config", "", "Configuration file")
		benchFlags.StringVar(configFile, "c", "", "Configuration file (short)")
		debug := benchFlags.Bool("debug", false, "Enable debug logging")
		benchFlags.Parse(os.Args[2:])
		setupLogging(*debug)
		err = cmd.RunBench(*configFile)

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := checkFlags.Bool("v", false, "Print the full declaration summary")
		checkFlags.Parse(os.Args[2:])
		configFile := ""
		if checkFlags.NArg() > 0 {
			configFile = checkFlags.Arg(0)
		}
		err = cmd.RunCheck(configFile, *verbose)

	case "init":
		initFlags := flag.NewFlagSet("init", flag.ExitOnError)
		force := initFlags.Bool("force", false, "Overwrite an existing file")
		initFlags.Parse(os.Args[2:])
		path := ""
		if initFlags.NArg() > 0 {
			path = initFlags.Arg(0)
		}
		err = cmd.RunInit(path, *force)

	case "show":
		showFlags := flag.NewFlagSet("show", flag.ExitOnError)
		configFile := showFlags.String("config", "", "Configuration file")
		showFlags.StringVar(configFile, "c", "", "Configuration file (short)")
		jsonOut := showFlags.Bool("json", false, "Print JSON instead of a table")
		showFlags.Parse(os.Args[2:])
		err = cmd.RunShow(*configFile, *jsonOut)

	case "version", "--version", "-v":
		fmt.Printf("%s %s (%s)\n", brand.Name, brand.Version, brand.GitCommit)
		return

	case "help", "--help", "-h":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}

func setupLogging(debug bool) {
	cfg := logging.DefaultConfig()
	if debug {
		cfg.Level = logging.LevelDebug
	}
	logging.SetDefault(logging.New(cfg))
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage: %s <command> [options]

Commands:
  up       Build the topology: namespaces, links, routes, translators
  down     Tear the topology back down
  verify   Ping through the rig and report unreachable pairs
  bench    Run the iperf3 benchmark matrix
  check    Validate a configuration file
  init     Write a starter configuration
  show     Show the live inventory against the configuration
  version  Print version information

Run with -c <file> to point at a configuration other than %s.
`, brand.BinaryName, brand.Description, brand.BinaryName, cmd.DefaultConfigPath())
}
