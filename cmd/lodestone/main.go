package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lodestone-re/lodestone/internal/arch"
	"github.com/lodestone-re/lodestone/internal/debug"
	"github.com/lodestone-re/lodestone/internal/emulator"
	"github.com/lodestone-re/lodestone/internal/execfile"
	lglog "github.com/lodestone-re/lodestone/internal/log"
	"github.com/lodestone-re/lodestone/internal/trace"
	"github.com/lodestone-re/lodestone/internal/ui/colorize"
)

var (
	verbose bool
	quiet   bool
	maxInsn int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lodestone [binary]",
		Short: "Emulate an ELF binary and print its execution trace",
		Long: `lodestone loads an ELF binary, builds an Emulator for its architecture,
and runs it from its entry point, printing a colorized disassembly trace as
it goes.

It is a thin demonstration of the arch/mem/debug/emulator libraries, not a
reverse-engineering product: no symbolic execution, no syscall emulation,
no remote debugging protocol.

Examples:
  lodestone ./a.out              # run with a colorized trace
  lodestone ./a.out -q           # quiet mode - final stats only
  lodestone ./a.out -v           # verbose debug output
  lodestone info ./a.out         # show binary info without running it`,
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		RunE:                  runTrace,
	}

	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode (final stats only)")
	rootCmd.Flags().IntVarP(&maxInsn, "num", "n", 500, "max instructions to print")

	infoCmd := &cobra.Command{
		Use:   "info <binary>",
		Short: "Show binary information without emulating it",
		Args:  cobra.ExactArgs(1),
		RunE:  showInfo,
	}
	rootCmd.AddCommand(infoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// outputWriter batches trace lines onto stdout off the emulation hot path:
// a full bufio.Writer flush on every instruction would dominate runtime for
// a fast-running guest, so writes go through a channel and are flushed on a
// ticker instead.
type outputWriter struct {
	ch     chan string
	done   chan struct{}
	writer *bufio.Writer
}

func newOutputWriter() *outputWriter {
	w := &outputWriter{
		ch:     make(chan string, 2048),
		done:   make(chan struct{}),
		writer: bufio.NewWriterSize(os.Stdout, 64*1024),
	}
	go w.run()
	return w
}

func (w *outputWriter) run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-w.ch:
			if !ok {
				w.writer.Flush()
				close(w.done)
				return
			}
			w.writer.WriteString(line)
			w.writer.WriteByte('\n')
		case <-ticker.C:
			w.writer.Flush()
		}
	}
}

func (w *outputWriter) Write(line string) {
	select {
	case w.ch <- line:
	default:
	}
}

func (w *outputWriter) Close() {
	close(w.ch)
	<-w.done
}

func formatLine(addr uint64, insn arch.Instruction, events []*trace.Event) string {
	var b strings.Builder
	b.Grow(128)

	visibleLen := 0

	b.WriteString(colorize.Address(addr))
	b.WriteString("  ")
	visibleLen += 8 + 2

	dis := insn.String()
	b.WriteString(colorize.Instruction(dis))
	visibleLen += len(dis)

	const insnCol = 40
	for visibleLen < insnCol {
		b.WriteByte(' ')
		visibleLen++
	}

	var tags []string
	var comments []string
	for _, e := range events {
		tags = append(tags, e.Tags.Strings()...)
		if e.Detail != "" {
			comments = append(comments, e.Detail)
		}
		for k, v := range e.Annotations {
			comments = append(comments, k+"="+v)
		}
	}
	if len(tags) > 0 || len(comments) > 0 {
		var parts []string
		if len(tags) > 0 {
			parts = append(parts, strings.Join(tags, " "))
		}
		if len(comments) > 0 {
			parts = append(parts, strings.Join(comments, ", "))
		}
		b.WriteString(colorize.Comment("  ; " + strings.Join(parts, " ")))
	}

	return b.String()
}

func printHeader(w *outputWriter, binary string, archName string, entry uint64, numSegments int) {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, binary); err == nil && !strings.HasPrefix(rel, "..") {
			binary = rel
		}
	}

	w.Write("")
	w.Write(fmt.Sprintf("%s lodestone ─ binary emulation trace", colorize.Header("▶")))
	w.Write(fmt.Sprintf("  %s %s", colorize.Detail("Loading:"), binary))
	w.Write(fmt.Sprintf("  %s %s  %s %s  %s %s",
		colorize.Detail("Arch:"), colorize.FuncName(archName),
		colorize.Detail("Entry:"), colorize.Address(entry),
		colorize.Detail("Segments:"), colorize.FuncName(fmt.Sprintf("%d", numSegments))))
	w.Write("")
}

func printStats(count int, pc, sp uint64, runErr error) {
	fmt.Println()
	fmt.Print(colorize.Border("───────────────────────── "))
	fmt.Printf("%s insn  pc %s  sp %s",
		colorize.FuncName(fmt.Sprintf("%d", count)),
		colorize.Address(pc), colorize.Address(sp))
	if runErr != nil {
		fmt.Printf("  %s", colorize.Fault(runErr.Error()))
	}
	fmt.Println()
}

func runTrace(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	binaryPath := args[0]

	lglog.Init(verbose)

	emu, err := emulator.FromExecFile(binaryPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", binaryPath, err)
	}
	defer emu.Close()

	var out *outputWriter
	if !quiet {
		out = newOutputWriter()
		printHeader(out, binaryPath, emu.Arch.EntryName(), mustPC(emu), emu.Memory.Segments.Len())
	}

	count := 0
	var traceErr error
	if _, err := emu.Debug.Trace(func(d *debug.Debugger, access arch.Access) {
		count++
		if count > maxInsn {
			if count == maxInsn+1 {
				d.Stop()
			}
			return
		}

		insn, derr := d.CurrInsn()
		if derr != nil {
			traceErr = derr
			d.Stop()
			return
		}

		var events []*trace.Event
		e := trace.NewEvent(access.Address, string(trace.Code), "", "")
		trace.DefaultEnricher(e)
		if e.Tags.Primary() != "" {
			events = append(events, e)
		}

		if quiet {
			return
		}
		if verbose {
			fmt.Printf("  [%4d] %s  %s\n", count, colorize.Address(access.Address), insn.String())
		} else {
			out.Write(formatLine(access.Address, insn, events))
		}
	}); err != nil {
		return fmt.Errorf("install trace hook: %w", err)
	}

	runErr := runUntilDone(emu.Debug)
	if traceErr != nil {
		runErr = traceErr
	}
	if out != nil {
		out.Close()
	}

	pc, _ := emu.Debug.PC()
	sp, _ := emu.Debug.SP()
	if quiet {
		fmt.Printf("%s  %d insn  pc %s\n", filepath.Base(binaryPath), count, colorize.Address(pc))
	} else {
		printStats(count, pc, sp, runErr)
	}

	return nil
}

// runUntilDone runs unbounded and returns Run's error unchanged. A stop
// triggered by the instruction budget (the trace hook's own Stop call) ends
// Run without an error, so reaching that cap is not reported as a failure
// the way a genuine memory fault or invalid instruction is.
func runUntilDone(d *debug.Debugger) error {
	_, err := d.Run(0, nil, nil)
	return err
}

func mustPC(emu *emulator.Emulator) uint64 {
	pc, err := emu.Debug.PC()
	if err != nil {
		return 0
	}
	return pc
}

func showInfo(cmd *cobra.Command, args []string) error {
	binaryPath := args[0]

	absPath, err := filepath.Abs(binaryPath)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("file not found: %s", absPath)
	}

	ef, err := execfile.Load(absPath)
	if err != nil {
		return fmt.Errorf("load binary: %w", err)
	}

	fmt.Printf("Binary: %s\n", filepath.Base(absPath))
	fmt.Printf("Arch:   %s\n", ef.Arch.EntryName())
	fmt.Printf("Entry:  0x%x\n", ef.Entry)
	fmt.Printf("Segments: %d\n\n", ef.Memory.Segments.Len())

	for _, seg := range ef.Memory.Segments.All() {
		fmt.Printf("  %-8s 0x%08x-0x%08x  %s\n", seg.Name, seg.Start, seg.End(), seg.Perms)
	}

	return nil
}
