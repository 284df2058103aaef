package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
)

// command is one of getCommand, setCommand, sunInfoCommand or autoCommand
type command interface {
	isCommand()
}

type getCommand struct{}

type setCommand struct {
	smooth bool
	value  uint8
}

type sunInfoCommand struct{}

// autoCommand runs when no subcommand is given
type autoCommand struct{}

func (getCommand) isCommand()     {}
func (setCommand) isCommand()     {}
func (sunInfoCommand) isCommand() {}
func (autoCommand) isCommand()    {}

type options struct {
	configPath string
	verbose    bool
	cmd        command
}

const usageText = `Gixie clock brightness control

Usage:
  gixiebright [-c|--config PATH] [-v|--verbose] [COMMAND]

Commands:
  get                     Print current brightness
  set VALUE [-s|--smooth] Set new brightness (0-255), optionally as a stepped transition
  suninfo                 Print today's sunrise and sunset
  (none)                  Set brightness from the sun position

Options:
`

// parseArgs parses global flags followed by an optional subcommand
func parseArgs(args []string, output io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("gixiebright", flag.ContinueOnError)
	fs.SetOutput(output)
	// Support both -c and --config for config path
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&opts.verbose, "v", false, "Enable debug logging (shorthand)")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		opts.cmd = autoCommand{}
		return opts, nil
	}

	var err error
	switch name, sub := rest[0], rest[1:]; name {
	case "get":
		err = noArgs(name, sub)
		opts.cmd = getCommand{}
	case "set":
		opts.cmd, err = parseSet(sub, output)
	case "suninfo":
		err = noArgs(name, sub)
		opts.cmd = sunInfoCommand{}
	default:
		err = fmt.Errorf("unknown command %q", name)
	}
	if err != nil {
		return nil, err
	}
	return opts, nil
}

func parseSet(args []string, output io.Writer) (command, error) {
	var cmd setCommand

	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.BoolVar(&cmd.smooth, "smooth", false, "Enable smooth transition")
	fs.BoolVar(&cmd.smooth, "s", false, "Enable smooth transition (shorthand)")

	// flag stops at the first positional, so resume after each one to accept
	// the switch on either side of VALUE
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(positional) != 1 {
		return nil, fmt.Errorf("set: expected exactly one VALUE, got %d", len(positional))
	}

	value, err := strconv.ParseUint(positional[0], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("set: invalid value %q: must be 0-255", positional[0])
	}
	cmd.value = uint8(value)
	return cmd, nil
}

func noArgs(name string, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%s: unexpected arguments %v", name, args)
	}
	return nil
}
