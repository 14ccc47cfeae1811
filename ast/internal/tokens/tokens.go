// Copyright 2020 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package tokens

// Token represents a single Python token.
type Token uint8

// All tokens must be defined here
const (
	Illegal Token = iota
	EOF
	Comment
	Newline
	Indent
	Dedent

	Ident
	Number
	String

	For
	In
	While
	If
	Elif
	Else
	Def
	Return
	Pass
	And
	Or
	Not

	LParen
	RParen
	LBrack
	RBrack
	LBrace
	RBrace
	Comma
	Colon
	Semicolon
	Dot

	Assign
	Add
	Sub
	Mul
	Pow
	Quo
	FloorDiv
	Rem

	AddAssign
	SubAssign
	MulAssign
	PowAssign
	QuoAssign
	FloorDivAssign
	RemAssign

	Equal
	Neq
	Lt
	Lte
	Gt
	Gte
)

var strings = [...]string{
	Illegal:        "illegal",
	EOF:            "eof",
	Comment:        "comment",
	Newline:        "newline",
	Indent:         "indent",
	Dedent:         "dedent",
	Ident:          "identifier",
	Number:         "number",
	String:         "string",
	For:            "for",
	In:             "in",
	While:          "while",
	If:             "if",
	Elif:           "elif",
	Else:           "else",
	Def:            "def",
	Return:         "return",
	Pass:           "pass",
	And:            "and",
	Or:             "or",
	Not:            "not",
	LParen:         "(",
	RParen:         ")",
	LBrack:         "[",
	RBrack:         "]",
	LBrace:         "{",
	RBrace:         "}",
	Comma:          ",",
	Colon:          ":",
	Semicolon:      ";",
	Dot:            ".",
	Assign:         "=",
	Add:            "+",
	Sub:            "-",
	Mul:            "*",
	Pow:            "**",
	Quo:            "/",
	FloorDiv:       "//",
	Rem:            "%",
	AddAssign:      "+=",
	SubAssign:      "-=",
	MulAssign:      "*=",
	PowAssign:      "**=",
	QuoAssign:      "/=",
	FloorDivAssign: "//=",
	RemAssign:      "%=",
	Equal:          "==",
	Neq:            "!=",
	Lt:             "<",
	Lte:            "<=",
	Gt:             ">",
	Gte:            ">=",
}

func (t Token) String() string {
	if int(t) >= len(strings) {
		return "unknown"
	}
	return strings[t]
}

// Keywords returns a copy of the default string -> Token keyword map.
func Keywords() map[string]Token {
	cpy := make(map[string]Token, len(keywords))
	for k, v := range keywords {
		cpy[k] = v
	}
	return cpy
}

var keywords = map[string]Token{
	"for":    For,
	"in":     In,
	"while":  While,
	"if":     If,
	"elif":   Elif,
	"else":   Else,
	"def":    Def,
	"return": Return,
	"pass":   Pass,
	"and":    And,
	"or":     Or,
	"not":    Not,
}

// IsKeyword returns if a token is a keyword
func IsKeyword(tok Token) bool {
	_, ok := keywords[strings[tok]]
	return ok
}

// IsAugmentedAssign returns true for "+=", "-=" and the other operators that
// update a name in place.
func IsAugmentedAssign(tok Token) bool {
	return tok >= AddAssign && tok <= RemAssign
}
