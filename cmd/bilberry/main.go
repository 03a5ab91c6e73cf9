// Command bilberry runs a statically linked 32-bit RISC-V (RV32IM) executable
// in a five-stage pipelined instruction-set simulator and prints the final
// architectural state on stdout.
//
//	bilberry [flags] <path-to-elf>
//
// Log verbosity is selected with the BILBERRY_LOG environment variable
// (debug, info, warn or error; default warn).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/eigerco/bilberry/internal/loader"
	"github.com/eigerco/bilberry/internal/runner"
	"github.com/eigerco/bilberry/internal/store"
	"github.com/eigerco/bilberry/pkg/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	memSize := flag.Uint("mem", 0, "memory image size in bytes (default 1 MiB)")
	maxTicks := flag.Uint64("max-ticks", 0, "abort after this many pipeline ticks (0 = unbounded)")
	traceDir := flag.String("trace-dir", "", "write an execution trace store to this directory")
	jsonLog := flag.Bool("log-json", false, "emit JSON logs instead of console logs")
	flag.Parse()

	level := zerolog.WarnLevel
	if env := os.Getenv("BILBERRY_LOG"); env != "" {
		parsed, err := log.ParseLogLevel(env)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid BILBERRY_LOG %q: %v\n", env, err)
			return 1
		}
		level = parsed
	}
	log.Init(log.Options{Level: level, JSON: *jsonLog})

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bilberry [flags] <path-to-elf>")
		return 1
	}

	prog, err := loader.Load(flag.Arg(0))
	if err != nil {
		log.Loader.Error().Err(err).Msg("failed to load executable")
		return 1
	}

	opts := runner.Options{
		MemorySize: uint32(*memSize),
		MaxTicks:   *maxTicks,
	}
	if *traceDir != "" {
		ts, err := store.Open(*traceDir)
		if err != nil {
			log.Trace.Error().Err(err).Msg("failed to open trace store")
			return 1
		}
		defer ts.Close()
		opts.Trace = ts
	}

	if _, err := runner.Run(prog, opts); err != nil {
		return 1
	}
	return 0
}
