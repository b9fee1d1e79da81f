// Command sixtwoasm assembles MOS 6502 source into raw machine code.
//
// Invoked with one or more file arguments, it assembles each in turn,
// non-interactively, writing a ".bin" file beside each source file.
// Invoked with none, it drops into an interactive command REPL built
// on top of the same Assembler.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nilclass/sixtwoasm/asm6502"
	"github.com/nilclass/sixtwoasm/listing"
)

func main() {
	origin := flag.Uint("origin", 0, "starting address, used when the source has no *= directive (default $0800)")
	verbose := flag.Bool("v", false, "verbose logging and symbol dumps")
	listOut := flag.Bool("l", false, "also write a .lst source listing")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		newRepl(*verbose).run(os.Stdin, os.Stdout, true)
		return
	}

	for _, filename := range args {
		if err := assembleFile(filename, uint32(*origin), *verbose, *listOut); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}
}

func assembleFile(filename string, origin uint32, verbose, writeListing bool) error {
	source, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	a := asm6502.NewAssembler()
	a.Verbose = verbose
	a.Output = os.Stderr
	if origin != 0 {
		a.SetOrigin(origin)
	}
	a.ReadInclude = includeReader(filepath.Dir(filename))

	buf, items, err := a.AssembleFull(string(source))
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}

	ext := filepath.Ext(filename)
	prefix := filename[:len(filename)-len(ext)]

	out, err := os.Create(prefix + ".bin")
	if err != nil {
		return err
	}
	defer out.Close()
	if err := asm6502.WriteBin(out, buf); err != nil {
		return err
	}

	fmt.Printf("%s: %d bytes at $%04X\n", filepath.Base(filename), len(buf), a.Origin())

	if writeListing {
		lst, err := os.Create(prefix + ".lst")
		if err != nil {
			return err
		}
		defer lst.Close()
		f := listing.NewFormatter(lst)
		if err := f.WriteItems(items); err != nil {
			return err
		}
	}

	return nil
}
