// Package colorize provides syntax highlighting for disassembled
// instructions and trace output, registering a custom Chroma style tuned
// for a black terminal background.
package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

func init() {
	// Register the lodestone trace style on package initialization
	_ = LodestoneTrace
}

// Disassembly trace theme colors
const (
	TraceAddress  = "#808080" // Gray for addresses
	TraceMnemonic = "#FFFFFF" // White for mnemonics
	TraceRegister = "#87CEEB" // Light blue for registers
	TraceNumber   = "#FF80C0" // Light pink for numbers
	TraceLabel    = "#FFC800" // Yellow for labels/function names
	TraceComment  = "#FF8000" // Orange for comments
	TraceString   = "#00FF00" // Green for strings
	TraceHexBytes = "#646464" // Dark gray for hex bytes
)

// LodestoneTrace is the Chroma style used to colorize disassembly and
// register/address output in cmd/lodestone's trace view.
var LodestoneTrace = styles.Register(chroma.MustNewStyle("lodestone-trace", chroma.StyleEntries{
	chroma.Text:           "#FFFFFF",    // White default
	chroma.Background:     "bg:#000000", // Pure black background
	chroma.Comment:        "#FF8000",    // Orange comments
	chroma.CommentPreproc: "#FF8000",    // Same for preprocessor comments

	// For NASM lexer mappings
	chroma.Keyword:       "#FFFFFF", // Instructions in white
	chroma.KeywordPseudo: "#FFFFFF", // Pseudo instructions in white
	chroma.Name:          "#87CEEB", // Generic names (registers) in cyan
	chroma.NameBuiltin:   "#87CEEB", // Builtin names (sp, lr) in cyan
	chroma.NameVariable:  "#87CEEB", // Variables/registers in cyan

	// Numbers - pink like IDA
	chroma.LiteralNumber:        "#FF80C0", // Decimal numbers in pink
	chroma.LiteralNumberHex:     "#FF80C0", // Hex numbers in pink
	chroma.LiteralNumberBin:     "#FF80C0", // Binary numbers in pink
	chroma.LiteralNumberOct:     "#FF80C0", // Octal numbers in pink
	chroma.LiteralNumberInteger: "#FF80C0", // Integer literals in pink
	chroma.LiteralNumberFloat:   "#FF80C0", // Float literals in pink

	// Labels and symbols
	chroma.NameLabel:    "#FFC800", // Labels in yellow
	chroma.NameFunction: "#FFFFFF", // Instructions as functions in white

	// Operators and punctuation
	chroma.Operator:    "#FFFFFF", // Operators in white
	chroma.Punctuation: "#FFFFFF", // Punctuation in white

	// Strings
	chroma.String: "#00FF00", // Strings in green
}))
