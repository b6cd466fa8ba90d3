// Command assembler reads a MIPS-I assembly source file and writes the
// assembled-program container the simulator loads.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/archlab/mipsooo/asm"
	"github.com/archlab/mipsooo/loader"
)

func main() {
	log.SetFlags(0)

	out := flag.String("o", "a.out", "output file for the assembled program")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: assembler [-o FILE] <source.s>")
	}

	if err := run(flag.Arg(0), *out); err != nil {
		log.Fatal(err)
	}
}

func run(srcPath, outPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	prog, err := asm.Assemble(src)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}

	dst, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer dst.Close()

	if err := loader.Save(dst, prog); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
