package vcd

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

// Parser parses Value Change Dump files, the export format of the logic
// analyzers and protocol captures the decoders consume.
type Parser struct {
	parser *participle.Parser[Document]
}

// NewParser creates a new VCD parser instance
func NewParser() (*Parser, error) {
	parser, err := participle.Build[Document](
		participle.Lexer(VCDLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}

	return &Parser{parser: parser}, nil
}

// Parse parses a VCD document from a reader
func (p *Parser) Parse(r io.Reader) (*Document, error) {
	doc, err := p.parser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return doc, nil
}

// ParseString parses a VCD document from a string
func (p *Parser) ParseString(input string) (*Document, error) {
	doc, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return doc, nil
}

// ParseFile parses a VCD document from a file path
func (p *Parser) ParseFile(filename string) (*Document, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}
