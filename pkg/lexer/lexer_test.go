package lexer

import "testing"

func TestNextTokenBasicTokens(t *testing.T) {
	input := `, . ... = ( ) { } [ ] ;`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenComma, ","},
		{TokenDot, "."},
		{TokenEllipsis, "..."},
		{TokenAssign, "="},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenSemicolon, ";"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%s, got=%s", i, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextTokenKeywordsAndIdentifiers(t *testing.T) {
	input := "true false nil function end return local count"

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenTrue, "true"},
		{TokenFalse, "false"},
		{TokenNil, "nil"},
		{TokenFunction, "function"},
		{TokenEnd, "end"},
		{TokenReturn, "return"},
		{TokenLocal, "local"},
		{TokenIdentifier, "count"},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%s, got=%s", i, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextTokenNumbers(t *testing.T) {
	input := "42 3.14"

	l := New(input)
	tok := l.NextToken()
	if tok.Type != TokenNumber || tok.Literal != "42" {
		t.Fatalf("expected NUMBER 42, got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenNumber || tok.Literal != "3.14" {
		t.Fatalf("expected NUMBER 3.14, got %s %q", tok.Type, tok.Literal)
	}
}

func TestNextTokenStringsWithEscapes(t *testing.T) {
	input := `"hello\nworld" 'single'`

	l := New(input)
	tok := l.NextToken()
	if tok.Type != TokenString || tok.Literal != "hello\nworld" {
		t.Fatalf("expected escaped string, got %q", tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenString || tok.Literal != "single" {
		t.Fatalf("expected 'single', got %q", tok.Literal)
	}
}

func TestNextTokenSkipsLineComments(t *testing.T) {
	input := "-- this is ignored\nx"

	l := New(input)
	tok := l.NextToken()
	if tok.Type != TokenIdentifier || tok.Literal != "x" {
		t.Fatalf("expected identifier x past the comment, got %s %q", tok.Type, tok.Literal)
	}
}

func TestNextTokenIllegalCharacter(t *testing.T) {
	l := New("@")
	tok := l.NextToken()
	if tok.Type != TokenIllegal {
		t.Fatalf("expected ILLEGAL, got %s", tok.Type)
	}
}
