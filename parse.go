package imapresp

import (
	"fmt"
	"strconv"
)

// parser decodes one response from buf, from offset o onward. Rules are
// named after the grammar productions they implement, with an "x" prefix for
// rules that panic on failure: a syntaxErr when the input can never match,
// an incompleteErr when the buffer ends before the rule can decide. Both are
// recovered in Decode. Alternation backtracks through try, which catches
// only syntaxErr: running out of bytes aborts the whole decode attempt,
// because more input could still make the attempted alternative match.
type parser struct {
	buf []byte
	o   int
}

type syntaxErr struct {
	err error
}

type incompleteErr struct {
	need int // Minimum missing bytes, 0 if unknown.
}

func (p *parser) xerrorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	panic(syntaxErr{fmt.Errorf("%w: %s (offset %d)", ErrSyntax, msg, p.o)})
}

func (p *parser) xneedmore() {
	panic(incompleteErr{})
}

// try runs f, rewinding and reporting failure if f hits a syntax error.
func (p *parser) try(f func()) (ok bool) {
	o := p.o
	defer func() {
		x := recover()
		if x == nil {
			return
		}
		if _, isSyntax := x.(syntaxErr); isSyntax {
			p.o = o
			ok = false
			return
		}
		panic(x)
	}()
	f()
	return true
}

func (p *parser) empty() bool {
	return p.o >= len(p.buf)
}

func (p *parser) peek(b byte) bool {
	return !p.empty() && p.buf[p.o] == b
}

func (p *parser) take(b byte) bool {
	if !p.peek(b) {
		return false
	}
	p.o++
	return true
}

func (p *parser) xtakeb(b byte) {
	if p.empty() {
		p.xneedmore()
	}
	if !p.take(b) {
		p.xerrorf("expected %q", string(rune(b)))
	}
}

// xtake consumes the exact bytes of s. A proper prefix at the end of the
// buffer is incomplete input, not a mismatch.
func (p *parser) xtake(s string) {
	for i := 0; i < len(s); i++ {
		if p.o+i >= len(p.buf) {
			p.xneedmore()
		}
		if p.buf[p.o+i] != s[i] {
			p.xerrorf("expected %q", s)
		}
	}
	p.o += len(s)
}

// xtakefold is xtake with ASCII case-insensitive matching. Only the status
// keywords are matched case-insensitively, everything else is byte-exact.
func (p *parser) xtakefold(s string) {
	for i := 0; i < len(s); i++ {
		if p.o+i >= len(p.buf) {
			p.xneedmore()
		}
		b := p.buf[p.o+i]
		if b >= 'a' && b <= 'z' {
			b -= 0x20
		}
		if b != s[i] {
			p.xerrorf("expected %q", s)
		}
	}
	p.o += len(s)
}

func (p *parser) xcrlf() {
	p.xtake("\r\n")
}

// Byte classes, from the protocol's formal syntax. The exclusion sets
// matter: "]" is special in atoms only, quoted strings and literals carry it
// verbatim.
func listWildcard(b byte) bool {
	return b == '%' || b == '*'
}

func quotedSpecial(b byte) bool {
	return b == '"' || b == '\\'
}

func respSpecial(b byte) bool {
	return b == ']'
}

func atomChar(b byte) bool {
	return b != '(' && b != ')' && b != '{' && b != ' ' && b >= 32 &&
		!listWildcard(b) && !quotedSpecial(b) && !respSpecial(b)
}

func tagChar(b byte) bool {
	return b != '+' && (atomChar(b) || respSpecial(b))
}

// xrun consumes a maximal non-empty run of bytes matching class. Reaching
// the end of the buffer mid-run is incomplete input: the run's end is only
// known once a delimiter byte is seen.
func (p *parser) xrun(class func(byte) bool, what string) string {
	o := p.o
	for !p.empty() && class(p.buf[p.o]) {
		p.o++
	}
	if p.empty() {
		p.xneedmore()
	}
	if p.o == o {
		p.xerrorf("expected %s", what)
	}
	return string(p.buf[o:p.o])
}

func (p *parser) xatom() string {
	return p.xrun(atomChar, "atom")
}

func (p *parser) xtag() string {
	return p.xrun(tagChar, "tag")
}

func (p *parser) xdigits() string {
	return p.xrun(func(b byte) bool { return b >= '0' && b <= '9' }, "digits")
}

func (p *parser) xuint32() uint32 {
	s := p.xdigits()
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		p.xerrorf("parsing number %q: %v", s, err)
	}
	return uint32(v)
}

func (p *parser) xint64() int64 {
	s := p.xdigits()
	v, err := strconv.ParseInt(s, 10, 63)
	if err != nil {
		p.xerrorf("parsing number %q: %v", s, err)
	}
	return v
}

// xtext consumes everything up to CR or LF, which must be present in the
// buffer: every response unit ends in CRLF, so text without a line ending in
// sight is incomplete input.
func (p *parser) xtext() string {
	o := p.o
	for !p.empty() && p.buf[p.o] != '\r' && p.buf[p.o] != '\n' {
		p.o++
	}
	if p.empty() {
		p.xneedmore()
	}
	return string(p.buf[o:p.o])
}

// xquoted decodes a quoted string. A backslash makes the next byte literal,
// whatever it is; decoding drops the backslash and keeps the byte.
func (p *parser) xquoted() string {
	p.xtakeb('"')
	var r []byte
	for {
		if p.empty() {
			p.xneedmore()
		}
		b := p.buf[p.o]
		p.o++
		if b == '"' {
			return string(r)
		}
		if b == '\\' {
			if p.empty() {
				p.xneedmore()
			}
			b = p.buf[p.o]
			p.o++
		}
		r = append(r, b)
	}
}

// xliteral decodes a length-prefixed literal. The content is binary safe and
// returned verbatim, including any CR, LF or NUL bytes. When the buffer
// holds fewer content bytes than announced, the incomplete signal carries
// the exact shortfall as a hint.
func (p *parser) xliteral() string {
	p.xtakeb('{')
	size := int(p.xuint32())
	p.xtakeb('}')
	p.xcrlf()
	if have := len(p.buf) - p.o; have < size {
		panic(incompleteErr{need: size - have})
	}
	s := string(p.buf[p.o : p.o+size])
	p.o += size
	return s
}

func (p *parser) xstring() string {
	if p.empty() {
		p.xneedmore()
	}
	switch p.buf[p.o] {
	case '"':
		return p.xquoted()
	case '{':
		return p.xliteral()
	}
	p.xerrorf("expected quoted string or literal")
	panic("not reached")
}

// NIL is matched exactly, before the string alternative, and in upper case
// only.
func (p *parser) takeNil() bool {
	return p.try(func() { p.xtake("NIL") })
}

func (p *parser) xnstring() *string {
	if p.takeNil() {
		return nil
	}
	s := p.xstring()
	return &s
}

func (p *parser) xflag() string {
	if p.take('\\') {
		return `\` + p.xatom()
	}
	return p.xatom()
}

// xflagPerm is xflag extended with `\*`, valid only inside PERMANENTFLAGS.
func (p *parser) xflagPerm() string {
	if p.take('\\') {
		if p.take('*') {
			return `\*`
		}
		return `\` + p.xatom()
	}
	return p.xatom()
}

// xflagList decodes a parenthesized flag list. Empty is valid and returned
// as a non-nil empty slice.
func (p *parser) xflagList() []string {
	p.xtakeb('(')
	l := []string{}
	if !p.take(')') {
		l = append(l, p.xflag())
		for p.take(' ') {
			l = append(l, p.xflag())
		}
		p.xtakeb(')')
	}
	return l
}

func (p *parser) xaddress() Address {
	p.xtakeb('(')
	name := p.xnstring()
	p.xtakeb(' ')
	adl := p.xnstring()
	p.xtakeb(' ')
	mailbox := p.xnstring()
	p.xtakeb(' ')
	host := p.xnstring()
	p.xtakeb(')')
	return Address{name, adl, mailbox, host}
}

// xaddresses decodes NIL or a group of one or more addresses. An opened
// group must hold at least one address, so nil means NIL and a non-nil
// result is never empty.
func (p *parser) xaddresses() []Address {
	if p.takeNil() {
		return nil
	}
	p.xtakeb('(')
	l := []Address{p.xaddress()}
	for !p.take(')') {
		l = append(l, p.xaddress())
	}
	return l
}

func (p *parser) xenvelope() Envelope {
	p.xtakeb('(')
	date := p.xnstring()
	p.xtakeb(' ')
	subject := p.xnstring()
	p.xtakeb(' ')
	from := p.xaddresses()
	p.xtakeb(' ')
	sender := p.xaddresses()
	p.xtakeb(' ')
	replyTo := p.xaddresses()
	p.xtakeb(' ')
	to := p.xaddresses()
	p.xtakeb(' ')
	cc := p.xaddresses()
	p.xtakeb(' ')
	bcc := p.xaddresses()
	p.xtakeb(' ')
	inReplyTo := p.xnstring()
	p.xtakeb(' ')
	messageID := p.xnstring()
	p.xtakeb(')')
	return Envelope{date, subject, from, sender, replyTo, to, cc, bcc, inReplyTo, messageID}
}

func (p *parser) xmsgAtt() FetchAttr {
	var r FetchAttr
	switch {
	case p.try(func() {
		p.xtake("ENVELOPE ")
		r = FetchEnvelope(p.xenvelope())
	}):
	case p.try(func() {
		p.xtake("INTERNALDATE ")
		s := p.xnstring()
		if s == nil {
			p.xerrorf("internal date cannot be NIL")
		}
		r = FetchInternalDate(*s)
	}):
	case p.try(func() {
		p.xtake("FLAGS ")
		r = FetchFlags(p.xflagList())
	}):
	case p.try(func() {
		p.xtake("MODSEQ (")
		v := p.xint64()
		p.xtakeb(')')
		r = FetchModSeq(v)
	}):
	case p.try(func() {
		p.xtake("RFC822 ")
		r = FetchRFC822{p.xnstring()}
	}):
	case p.try(func() {
		p.xtake("RFC822.SIZE ")
		r = FetchRFC822Size(p.xuint32())
	}):
	case p.try(func() {
		p.xtake("UID ")
		r = FetchUID(p.xuint32())
	}):
	default:
		p.xerrorf("expected fetch attribute")
	}
	return r
}

// Already consumed: number SP "FETCH" SP
func (p *parser) xmsgAttList() []FetchAttr {
	p.xtakeb('(')
	l := []FetchAttr{p.xmsgAtt()}
	for p.take(' ') {
		l = append(l, p.xmsgAtt())
	}
	p.xtakeb(')')
	return l
}

func (p *parser) xrespCode() Code {
	var r Code
	switch {
	case p.try(func() {
		p.xtake("PERMANENTFLAGS (")
		l := []string{}
		if !p.take(')') {
			l = append(l, p.xflagPerm())
			for p.take(' ') {
				l = append(l, p.xflagPerm())
			}
			p.xtakeb(')')
		}
		r = CodePermanentFlags(l)
	}):
	case p.try(func() {
		p.xtake("UIDVALIDITY ")
		r = CodeUIDValidity(p.xuint32())
	}):
	case p.try(func() {
		p.xtake("UIDNEXT ")
		r = CodeUIDNext(p.xuint32())
	}):
	case p.try(func() {
		p.xtake("READ-ONLY")
		r = CodeReadOnly
	}):
	case p.try(func() {
		p.xtake("READ-WRITE")
		r = CodeReadWrite
	}):
	case p.try(func() {
		p.xtake("TRYCREATE")
		r = CodeTryCreate
	}):
	case p.try(func() {
		p.xtake("HIGHESTMODSEQ ")
		r = CodeHighestModSeq(p.xint64())
	}):
	default:
		p.xerrorf("unknown response code")
	}
	return r
}

// xrespText decodes [code] and trailing text. The strict grammar requires
// "SP text" after a bracketed code, but servers omit it, so the closing "]"
// may end the line and a lone separating space decodes as no text. An
// unrecognized bracketed code is not an error, the whole bracketed part then
// counts as text.
func (p *parser) xrespText() (Code, *string) {
	var code Code
	if p.peek('[') {
		p.try(func() {
			p.xtakeb('[')
			c := p.xrespCode()
			p.xtakeb(']')
			code = c
		})
	}
	text := p.xtext()
	if code != nil && len(text) > 0 && text[0] == ' ' {
		text = text[1:]
	}
	if text == "" {
		return code, nil
	}
	return code, &text
}

// Already consumed: "*" SP
func (p *parser) xuntagged() Response {
	var r Response
	switch {
	case p.try(func() {
		status := p.xstatus()
		p.xtakeb(' ')
		code, text := p.xrespText()
		r = Cond{status, code, text}
	}):
	case p.try(func() {
		p.xtake("FLAGS ")
		r = MailboxData{MailboxFlags(p.xflagList())}
	}):
	case p.try(func() {
		num := p.xuint32()
		p.xtake(" EXISTS")
		r = MailboxData{MailboxExists(num)}
	}):
	case p.try(func() {
		num := p.xuint32()
		p.xtake(" RECENT")
		r = MailboxData{MailboxRecent(num)}
	}):
	case p.try(func() {
		num := p.xuint32()
		p.xtake(" EXPUNGE")
		r = Expunge(num)
	}):
	case p.try(func() {
		num := p.xuint32()
		p.xtake(" FETCH ")
		r = Fetch{num, p.xmsgAttList()}
	}):
	case p.try(func() {
		p.xtake("CAPABILITY")
		p.xtakeb(' ')
		caps := Capabilities{p.xatom()}
		for p.take(' ') {
			caps = append(caps, p.xatom())
		}
		r = caps
	}):
	default:
		p.xerrorf("unknown untagged response")
	}
	return r
}

func (p *parser) xstatus() Status {
	for _, st := range []Status{OK, NO, BAD, PREAUTH, BYE} {
		s := st
		if p.try(func() { p.xtakefold(string(s)) }) {
			return s
		}
	}
	p.xerrorf("expected status")
	panic("not reached")
}

// xresponse decodes one full response unit including the final CRLF. "*" is
// not a valid tag byte, so the top-level dispatch needs no backtracking.
func (p *parser) xresponse() Response {
	if p.take('*') {
		p.xtakeb(' ')
		r := p.xuntagged()
		p.xcrlf()
		return r
	}
	tag := p.xtag()
	p.xtakeb(' ')
	status := p.xstatus()
	p.xtakeb(' ')
	code, text := p.xrespText()
	p.xcrlf()
	return Done{tag, status, code, text}
}
