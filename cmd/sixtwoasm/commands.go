package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/cmd"
	"github.com/k0kubun/pp/v3"

	"github.com/nilclass/sixtwoasm/asm6502"
	"github.com/nilclass/sixtwoasm/listing"
)

// commandTree builds the REPL's command tree, mirroring the shape of the
// teacher's debugger command tree: a flat cmd.NewTree of top-level
// commands, each carrying a bound (*repl) method as its Data callback.
func commandTree() *cmd.Tree {
	return cmd.NewTree("sixtwoasm", []cmd.Command{
		{
			Name:     "help",
			Shortcut: "?",
			Brief:    "Display help",
			HelpText: "help [<command>]",
			Data:     (*repl).cmdHelp,
		},
		{
			Name:     "assemble",
			Shortcut: "a",
			Brief:    "Assemble a file",
			Description: "Assemble the named source file and report the number" +
				" of bytes produced. The buffer and symbol table remain" +
				" available to the symbols and listing commands.",
			HelpText: "assemble <filename>",
			Data:     (*repl).cmdAssemble,
		},
		{
			Name:     "symbols",
			Shortcut: "sym",
			Brief:    "List defined symbols",
			HelpText: "symbols",
			Data:     (*repl).cmdSymbols,
		},
		{
			Name:  "listing",
			Brief: "Print the source listing of the last assembly",
			HelpText: "listing",
			Data:  (*repl).cmdListing,
		},
		{
			Name:  "origin",
			Shortcut: "org",
			Brief: "Show or set the starting address",
			Description: "With no argument, show the configured origin." +
				" With an argument, set the origin used for the next" +
				" assemble, absent its own \"*=\" directive.",
			HelpText: "origin [<address>]",
			Data:     (*repl).cmdOrigin,
		},
		{
			Name:  "reset",
			Brief: "Clear the assembler state",
			HelpText: "reset",
			Data:  (*repl).cmdReset,
		},
		{
			Name:     "quit",
			Shortcut: "q",
			Brief:    "Quit the program",
			HelpText: "quit",
			Data:     (*repl).cmdQuit,
		},
	})
}

func (r *repl) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		r.println(r.tree.Title + " commands:")
		for _, cc := range r.tree.Commands {
			if cc.Brief != "" {
				r.printf("    %-10s  %s\n", cc.Name, cc.Brief)
			}
		}
		return nil
	}
	s, err := r.tree.Lookup(strings.Join(c.Args, " "))
	if err != nil {
		r.printf("%v\n", err)
		return nil
	}
	if s.Command.HelpText != "" {
		r.printf("Syntax: %s\n", s.Command.HelpText)
	}
	if s.Command.Description != "" {
		r.printf("%s\n", s.Command.Description)
	} else if s.Command.Brief != "" {
		r.printf("%s.\n", s.Command.Brief)
	}
	return nil
}

func (r *repl) cmdAssemble(c cmd.Selection) error {
	if len(c.Args) < 1 {
		r.printf("Syntax: assemble <filename>\n")
		return nil
	}

	filename := c.Args[0]
	if filepath.Ext(filename) == "" {
		filename += ".asm"
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		r.printf("Failed to read '%s': %v\n", filepath.Base(filename), err)
		return nil
	}

	r.asm.ReadInclude = includeReader(filepath.Dir(filename))
	buf, items, err := r.asm.AssembleFull(string(source))
	if err != nil {
		r.printf("Failed to assemble '%s': %v\n", filepath.Base(filename), err)
		return nil
	}
	r.lastItems = items

	ext := filepath.Ext(filename)
	binFilename := filename[:len(filename)-len(ext)] + ".bin"
	out, err := os.Create(binFilename)
	if err != nil {
		r.printf("Failed to create '%s': %v\n", filepath.Base(binFilename), err)
		return nil
	}
	defer out.Close()
	if err := asm6502.WriteBin(out, buf); err != nil {
		r.printf("Failed to write '%s': %v\n", filepath.Base(binFilename), err)
		return nil
	}

	r.printf("Assembled '%s' to '%s' (%d bytes, origin $%04X).\n",
		filepath.Base(filename), filepath.Base(binFilename), len(buf), r.asm.Origin())

	if r.verbose {
		pp.Fprintln(os.Stderr, r.asm.Symbols())
	}
	return nil
}

func (r *repl) cmdSymbols(c cmd.Selection) error {
	syms := r.asm.Symbols()
	if len(syms) == 0 {
		r.println("No symbols defined.")
		return nil
	}
	r.println("Name             Kind      Value")
	r.println("---------------  --------  -----")
	for _, s := range syms {
		r.printf("%-15s  %-8s  $%04X\n", s.Name, s.Kind, s.Value)
	}
	return nil
}

func (r *repl) cmdListing(c cmd.Selection) error {
	if len(r.lastItems) == 0 {
		r.println("No assembly to list. Run 'assemble' first.")
		return nil
	}
	f := listing.NewFormatter(r.output)
	return f.WriteItems(r.lastItems)
}

func (r *repl) cmdOrigin(c cmd.Selection) error {
	if len(c.Args) == 0 {
		r.printf("Origin: $%04X\n", r.asm.Origin())
		return nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(c.Args[0], "$"), 16, 32)
	if err != nil {
		r.printf("Invalid address '%s': %v\n", c.Args[0], err)
		return nil
	}
	r.asm.SetOrigin(uint32(v))
	r.printf("Origin set to $%04X.\n", v)
	return nil
}

func (r *repl) cmdReset(c cmd.Selection) error {
	r.asm.Reset()
	r.lastItems = nil
	r.println("Assembler state cleared.")
	return nil
}

func (r *repl) cmdQuit(c cmd.Selection) error {
	return fmt.Errorf("exiting")
}
