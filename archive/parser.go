package archive

import (
	"time"

	"github.com/gnu-mirror-unofficial/rcs-go/arena"
	"github.com/gnu-mirror-unofficial/rcs-go/fro"
	"github.com/gnu-mirror-unofficial/rcs-go/rcsdate"
	"github.com/gnu-mirror-unofficial/rcs-go/revnum"
	"github.com/pkg/errors"
)

func normalizeNum(s string) string { return revnum.Normalize(s) }

// SemanticError is returned when a syntactically valid archive fails a
// post-parse consistency check.
type SemanticError struct {
	File string
	Msg  string
}

func (e *SemanticError) Error() string { return e.File + ": " + e.Msg }

// Parser ("grok") builds a Repository from a lexed archive.
type Parser struct {
	lex   *Lexer
	f     *fro.Fro
	name  string
	cur   Token
	err   error
	arena *arena.Space

	// bodyOrder remembers the order deltatext bodies appeared in the
	// source archive, so the writer can preserve that order for unchanged
	// deltas.
	bodyOrder []string
}

// Parse lexes and parses f's contents into a Repository.
func Parse(f *fro.Fro) (*Repository, []string, error) {
	p := &Parser{lex: NewLexer(f), f: f, name: f.Name()}
	if err := p.advance(); err != nil {
		return nil, nil, err
	}
	r := NewRepository()
	r.Source = f
	p.arena = r.Arena
	if err := p.parseAdmin(r); err != nil {
		return nil, nil, err
	}
	if err := p.parseDeltaHeaders(r); err != nil {
		return nil, nil, err
	}
	if err := p.parseDesc(r); err != nil {
		return nil, nil, err
	}
	if err := p.parseDeltaTexts(r); err != nil {
		return nil, nil, err
	}
	if err := p.checkConsistency(r); err != nil {
		return nil, nil, err
	}
	r.BodyOrder = p.bodyOrder
	return r, p.bodyOrder, nil
}

func (p *Parser) advance() error {
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *Parser) errf(format string, args ...interface{}) error {
	return &SyntaxError{File: p.name, Line: p.cur.Line, Msg: errors.Errorf(format, args...).Error()}
}

func (p *Parser) expectSemicolon() error {
	if p.cur.Kind != TokSemicolon {
		return p.errf("expected ';', got %q", p.cur.Text)
	}
	return p.advance()
}

// materialize turns a TokString into text using the same "@@"->"@"
// contraction rule that the writer and keyword expander rely on, interning
// the result into the Repository's arena so every small admin-clause
// string parsed out of the archive is grouped into one bump-allocated
// Space instead of scattering across the garbage collector individually.
func (p *Parser) materialize(t Token) (string, error) {
	s, err := fro.MaterializeString(p.f, t.StringSpans)
	if err != nil {
		return "", err
	}
	return p.arena.InternString(s), nil
}

func (p *Parser) parseAdmin(r *Repository) error {
	if p.cur.Kind == TokIdent && p.cur.Text == "head" {
		if err := p.advance(); err != nil {
			return err
		}
		if p.cur.Kind == TokNum {
			num := normalizeNum(p.cur.Text)
			if err := p.advance(); err != nil {
				return err
			}
			r.headNum = num
		}
		if err := p.expectSemicolon(); err != nil {
			return err
		}
	}
	if p.cur.Kind == TokIdent && p.cur.Text == "branch" {
		if err := p.advance(); err != nil {
			return err
		}
		if p.cur.Kind == TokNum {
			r.Branch = normalizeNum(p.cur.Text)
			if err := p.advance(); err != nil {
				return err
			}
		}
		if err := p.expectSemicolon(); err != nil {
			return err
		}
	}
	if err := p.expectClauseName("access"); err != nil {
		return err
	}
	for p.cur.Kind == TokIdent {
		r.Access = append(r.Access, p.cur.Text)
		if err := p.advance(); err != nil {
			return err
		}
	}
	if err := p.expectSemicolon(); err != nil {
		return err
	}

	if err := p.expectClauseName("symbols"); err != nil {
		return err
	}
	for p.cur.Kind == TokIdent {
		name := p.cur.Text
		if err := p.advance(); err != nil {
			return err
		}
		if p.cur.Kind != TokColon {
			return p.errf("expected ':' after symbol name %q", name)
		}
		if err := p.advance(); err != nil {
			return err
		}
		if p.cur.Kind != TokNum {
			return p.errf("expected revision number for symbol %q", name)
		}
		r.SetSymbol(name, normalizeNum(p.cur.Text))
		if err := p.advance(); err != nil {
			return err
		}
	}
	if err := p.expectSemicolon(); err != nil {
		return err
	}

	if err := p.expectClauseName("locks"); err != nil {
		return err
	}
	for p.cur.Kind == TokIdent {
		who := p.cur.Text
		if err := p.advance(); err != nil {
			return err
		}
		if p.cur.Kind != TokColon {
			return p.errf("expected ':' after lock owner %q", who)
		}
		if err := p.advance(); err != nil {
			return err
		}
		if p.cur.Kind != TokNum {
			return p.errf("expected revision number for lock by %q", who)
		}
		r.SetLock(normalizeNum(p.cur.Text), who)
		if err := p.advance(); err != nil {
			return err
		}
	}
	if err := p.expectSemicolon(); err != nil {
		return err
	}
	if p.cur.Kind == TokIdent && p.cur.Text == "strict" {
		r.Strict = true
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.expectSemicolon(); err != nil {
			return err
		}
	}
	if p.cur.Kind == TokIdent && p.cur.Text == "comment" {
		if err := p.advance(); err != nil {
			return err
		}
		if p.cur.Kind == TokString {
			s, err := p.materialize(p.cur)
			if err != nil {
				return err
			}
			r.Comment = s
			if err := p.advance(); err != nil {
				return err
			}
		}
		if err := p.expectSemicolon(); err != nil {
			return err
		}
	}
	if p.cur.Kind == TokIdent && p.cur.Text == "expand" {
		if err := p.advance(); err != nil {
			return err
		}
		if p.cur.Kind == TokString {
			s, err := p.materialize(p.cur)
			if err != nil {
				return err
			}
			r.Expand = s
			if err := p.advance(); err != nil {
				return err
			}
		}
		if err := p.expectSemicolon(); err != nil {
			return err
		}
	}
	// newphrase*: unrecognized "ident {word} ;" clauses, including the
	// obsolete COMPAT2 "suffix" clause — skipped
	// and never re-emitted. A revision-number token (not an identifier) is
	// what starts the delta-header section, so this loop stops naturally
	// once p.cur.Kind == TokNum.
	for p.cur.Kind == TokIdent && p.cur.Text != "desc" {
		if err := p.skipNewphrase(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) expectClauseName(name string) error {
	if p.cur.Kind != TokIdent || p.cur.Text != name {
		return p.errf("expected %q clause, got %q", name, p.cur.Text)
	}
	return p.advance()
}

// skipNewphrase consumes "ident {word} ;" for forward-compatibility with
// fields this parser doesn't recognize.
func (p *Parser) skipNewphrase() error {
	if err := p.advance(); err != nil { // consume the ident
		return err
	}
	for p.cur.Kind != TokSemicolon {
		if p.cur.Kind == TokEOF {
			return p.errf("unexpected EOF in newphrase")
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	return p.advance() // consume ';'
}

func (p *Parser) parseDeltaHeaders(r *Repository) error {
	for p.cur.Kind == TokNum {
		num := normalizeNum(p.cur.Text)
		if err := p.advance(); err != nil {
			return err
		}
		d := &Delta{Num: num, State: "Exp", Next: NoDelta}
		for {
			if p.cur.Kind != TokIdent {
				break
			}
			switch p.cur.Text {
			case "date":
				if err := p.advance(); err != nil {
					return err
				}
				if p.cur.Kind != TokNum {
					return p.errf("expected date value")
				}
				date, wasY2, err := rcsdate.Parse(p.cur.Text)
				if err != nil {
					return p.errf("bad date: %v", err)
				}
				d.Date = date
				d.DateWasY2 = wasY2
				if err := p.advance(); err != nil {
					return err
				}
				if err := p.expectSemicolon(); err != nil {
					return err
				}
			case "author":
				if err := p.advance(); err != nil {
					return err
				}
				if p.cur.Kind == TokIdent {
					d.Author = p.cur.Text
					if err := p.advance(); err != nil {
						return err
					}
				}
				if err := p.expectSemicolon(); err != nil {
					return err
				}
			case "state":
				if err := p.advance(); err != nil {
					return err
				}
				if p.cur.Kind == TokIdent {
					d.State = p.cur.Text
					if err := p.advance(); err != nil {
						return err
					}
				}
				if err := p.expectSemicolon(); err != nil {
					return err
				}
			case "branches":
				if err := p.advance(); err != nil {
					return err
				}
				for p.cur.Kind == TokNum {
					d.branchNums = append(d.branchNums, normalizeNum(p.cur.Text))
					if err := p.advance(); err != nil {
						return err
					}
				}
				if err := p.expectSemicolon(); err != nil {
					return err
				}
			case "next":
				if err := p.advance(); err != nil {
					return err
				}
				if p.cur.Kind == TokNum {
					d.nextNum = normalizeNum(p.cur.Text)
					if err := p.advance(); err != nil {
						return err
					}
				}
				if err := p.expectSemicolon(); err != nil {
					return err
				}
			case "commitid":
				if err := p.advance(); err != nil {
					return err
				}
				if p.cur.Kind == TokIdent {
					d.CommitID = p.cur.Text
					if err := p.advance(); err != nil {
						return err
					}
				}
				if err := p.expectSemicolon(); err != nil {
					return err
				}
			case "desc":
				goto doneHeader
			default:
				if err := p.skipNewphrase(); err != nil {
					return err
				}
			}
			if p.cur.Kind == TokNum || (p.cur.Kind == TokIdent && p.cur.Text == "desc") {
				break
			}
		}
	doneHeader:
		r.AddDelta(d)
	}
	return nil
}

func (p *Parser) parseDesc(r *Repository) error {
	r.Neck = p.cur.Offset
	if err := p.expectClauseName("desc"); err != nil {
		return err
	}
	if p.cur.Kind != TokString {
		return p.errf("expected description string")
	}
	r.Desc = p.cur.StringSpans
	return p.advance()
}

func (p *Parser) parseDeltaTexts(r *Repository) error {
	for p.cur.Kind == TokNum {
		num := normalizeNum(p.cur.Text)
		id, ok := r.DeltaByNum(num)
		if !ok {
			return p.errf("deltatext for unknown revision %s", num)
		}
		d := r.Get(id)
		d.Neck = p.cur.Offset
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.expectClauseName("log"); err != nil {
			return err
		}
		if p.cur.Kind != TokString {
			return p.errf("expected log string for %s", num)
		}
		d.Log = p.cur.StringSpans
		if err := p.advance(); err != nil {
			return err
		}
		for p.cur.Kind == TokIdent && p.cur.Text != "text" {
			if err := p.skipNewphrase(); err != nil {
				return err
			}
		}
		if err := p.expectClauseName("text"); err != nil {
			return err
		}
		if p.cur.Kind != TokString {
			return p.errf("expected text string for %s", num)
		}
		d.Text = p.cur.StringSpans
		if err := p.advance(); err != nil {
			return err
		}
		p.bodyOrder = append(p.bodyOrder, num)
	}
	if p.cur.Kind != TokEOF {
		return p.errf("trailing garbage after last deltatext")
	}
	return nil
}

// checkConsistency implements the post-parse rules: head
// must resolve, branches/next must resolve, and a lock on a missing
// revision is downgraded to a phantom delta rather than rejected outright.
func (p *Parser) checkConsistency(r *Repository) error {
	if r.headNum != "" {
		id, ok := r.DeltaByNum(r.headNum)
		if !ok {
			return &SemanticError{File: p.name, Msg: "head revision " + r.headNum + " does not exist"}
		}
		r.Head = id
	}
	// Link next/branches now that every delta has been seen.
	for _, d := range r.Deltas {
		if d.nextNum != "" {
			id, ok := r.DeltaByNum(d.nextNum)
			if !ok {
				return &SemanticError{File: p.name, Msg: "revision " + d.nextNum + " (next of " + d.Num + ") does not exist"}
			}
			d.Next = id
		}
		for _, bn := range d.branchNums {
			id, ok := r.DeltaByNum(bn)
			if !ok {
				return &SemanticError{File: p.name, Msg: "branch revision " + bn + " (of " + d.Num + ") does not exist"}
			}
			d.Branches = append(d.Branches, id)
		}
	}
	// Phantom deltas for locks on missing revisions: the lock is kept on a
	// phantom delta instead of failing the parse; no warning is emitted.
	for num, who := range r.locks {
		if _, ok := r.DeltaByNum(num); !ok {
			id := r.AddDelta(&Delta{Num: num, State: "Exp", Next: NoDelta, Phantom: true})
			r.Deltas[id].LockedBy = who
		}
	}
	for num, id := range r.byNum {
		if who, ok := r.locks[num]; ok {
			r.Deltas[id].LockedBy = who
		}
	}
	return nil
}
