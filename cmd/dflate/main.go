// Command dflate is a stdin/stdout front end for the dflate package:
// it pipes bytes through Compress or Decompress, nothing more.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-dflate/dflate"

	"rsc.io/getopt"

	"golang.org/x/term"
)

var (
	decompress = flag.Bool("decompress", false, "specify to decompress")
	sequential = flag.Bool("sequential", false, "use the single-threaded compressor instead of the pipelined one")
	dynamic    = flag.Bool("dynamic", false, "enable the dynamic block-boundary heuristic (compress only, not byte-stable)")
	blockSize  = flag.Int("block-size", dflate.DefaultBlockSize, "target bytes covered per block (compress only)")
)

func do() int {
	if len(flag.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "dflate: unexpected arguments\n")
		return 2
	}

	if !*decompress && term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintf(os.Stderr, "dflate: I'm not writing compressed data to stdout\n")
		return 13
	}

	input, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		fmt.Fprintf(os.Stderr, "stdin: %v\n", err)
		return 3
	}

	var out []byte
	if *decompress {
		out, err = dflate.Decompress(input)
	} else {
		opts := []dflate.DriverOption{
			dflate.WithBlockSize(*blockSize),
			dflate.WithDynamicBoundary(*dynamic),
		}
		if *sequential {
			out, err = dflate.CompressSequential(input, opts...)
		} else {
			out, err = dflate.Compress(input, opts...)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "dflate: %v\n", err)
		return 8
	}

	w := bufio.NewWriter(os.Stdout)
	if _, err := w.Write(out); err != nil {
		fmt.Fprintf(os.Stderr, "stdout: %v\n", err)
		return 10
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "stdout: %v\n", err)
		return 10
	}
	return 0
}

func main() {
	getopt.Alias("d", "decompress")

	if err := getopt.CommandLine.Parse(os.Args[1:]); err != nil {
		os.Exit(12)
	}

	os.Exit(do())
}
