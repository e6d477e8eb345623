package vcd

// Document is a parsed VCD file: a flat stream of declaration commands,
// timestamps and scalar value changes in file order. Structure is recovered
// in a second phase (see wave.go), the grammar stays deliberately flat.
type Document struct {
	Items []*Item `parser:"@@*"`
}

// Item is one element of the stream.
type Item struct {
	Command *Command `parser:"  @@"`
	Time    *string  `parser:"| @Time"`
	Change  *string  `parser:"| @Scalar"`
	Other   *string  `parser:"| @( Word | Int )"`
}

// Command is a $keyword ... $end block. The body is kept as raw tokens;
// $var and $dumpvars bodies are interpreted during extraction.
type Command struct {
	Keyword string   `parser:"@Keyword"`
	Body    []string `parser:"@( Word | Int | Scalar | Time )* End"`
}
