package vcd

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// VCDLexer defines the lexical structure for Value Change Dump files.
// Identifier codes are arbitrary runs of printable characters, so a scalar
// value change is one token: the value digit glued to the code.
var VCDLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Whitespace
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	// $end terminates a declaration command; it must win over the generic
	// keyword rule, which the \b guard arranges for "$enddefinitions".
	{Name: "End", Pattern: `\$end\b`},

	// Declaration and simulation commands ($date, $var, $dumpvars, ...)
	{Name: "Keyword", Pattern: `\$[a-zA-Z]+`},

	// Simulation timestamps
	{Name: "Time", Pattern: `#[0-9]+`},

	// Scalar value changes: a value character directly followed by an
	// identifier code
	{Name: "Scalar", Pattern: `[01xXzZ][\x21-\x7e]+`},

	// Numbers (variable widths, timescale magnitudes)
	{Name: "Int", Pattern: `[0-9]+`},

	// Everything else printable: identifier codes, names, unit suffixes
	{Name: "Word", Pattern: `[\x21-\x7e]+`},
})
