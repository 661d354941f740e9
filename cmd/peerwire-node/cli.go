package main

import "flag"

// Options holds CLI options for the node.
type Options struct {
	ConfigPath string
	Ping       bool
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("peerwire-node", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
	fs.BoolVar(&opts.Ping, "ping", false, "Send one ping envelope to all configured peers at startup")
	_ = fs.Parse(args)
	return opts
}
