package imapresp

import (
	"fmt"
	"strings"
)

// Status is the condition keyword of a tagged or untagged status response.
// Always in upper case, also when the server sent it in lower or mixed case.
type Status string

const (
	OK      Status = "OK"      // Command succeeded.
	NO      Status = "NO"      // Command failed.
	BAD     Status = "BAD"     // Syntax error in command.
	PREAUTH Status = "PREAUTH" // Connection started in authenticated state.
	BYE     Status = "BYE"     // Server is closing the connection.
)

// Code represents a response code with optional argument, i.e. the data
// between [] in a response line.
type Code interface {
	CodeString() string
}

// CodeWord is a response code without argument.
type CodeWord string

const (
	CodeReadOnly  CodeWord = "READ-ONLY"
	CodeReadWrite CodeWord = "READ-WRITE"
	CodeTryCreate CodeWord = "TRYCREATE"
)

func (c CodeWord) CodeString() string {
	return string(c)
}

// CodePermanentFlags lists the flags that can be changed permanently. The
// special entry `\*` means the server allows creating new keyword flags.
type CodePermanentFlags []string

func (c CodePermanentFlags) CodeString() string {
	return "PERMANENTFLAGS (" + strings.Join([]string(c), " ") + ")"
}

type CodeUIDValidity uint32

func (c CodeUIDValidity) CodeString() string {
	return fmt.Sprintf("UIDVALIDITY %d", c)
}

type CodeUIDNext uint32

func (c CodeUIDNext) CodeString() string {
	return fmt.Sprintf("UIDNEXT %d", c)
}

// For CONDSTORE.
type CodeHighestModSeq int64

func (c CodeHighestModSeq) CodeString() string {
	return fmt.Sprintf("HIGHESTMODSEQ %d", c)
}

// Address is a single address from an envelope. A nil field was sent as NIL.
type Address struct {
	Name    *string // Display name.
	ADL     *string // Source route, rarely used.
	Mailbox *string // Local part.
	Host    *string // Domain.
}

func (a Address) String() string {
	return "(" + nstring(a.Name) + " " + nstring(a.ADL) + " " + nstring(a.Mailbox) + " " + nstring(a.Host) + ")"
}

// Envelope holds the envelope structure of a message. Field order is the
// wire order. A nil string was sent as NIL. A nil address list was sent as
// NIL, which is distinct from a present but empty list: once a list group is
// opened on the wire it must hold at least one address, so decoded lists are
// either nil or non-empty.
type Envelope struct {
	Date      *string
	Subject   *string
	From      []Address
	Sender    []Address
	ReplyTo   []Address
	To        []Address
	CC        []Address
	BCC       []Address
	InReplyTo *string
	MessageID *string
}

func (e Envelope) String() string {
	l := []string{
		nstring(e.Date),
		nstring(e.Subject),
		addresses(e.From),
		addresses(e.Sender),
		addresses(e.ReplyTo),
		addresses(e.To),
		addresses(e.CC),
		addresses(e.BCC),
		nstring(e.InReplyTo),
		nstring(e.MessageID),
	}
	return "(" + strings.Join(l, " ") + ")"
}

// FetchAttr is a single attribute from an untagged FETCH response.
type FetchAttr interface {
	String() string
	fetchAttr()
}

type FetchEnvelope Envelope

func (f FetchEnvelope) fetchAttr() {}
func (f FetchEnvelope) String() string {
	return "ENVELOPE " + Envelope(f).String()
}

// FetchInternalDate is the message arrival time as sent by the server,
// uninterpreted.
type FetchInternalDate string

func (f FetchInternalDate) fetchAttr() {}
func (f FetchInternalDate) String() string {
	return "INTERNALDATE " + quote(string(f))
}

type FetchFlags []string

func (f FetchFlags) fetchAttr() {}
func (f FetchFlags) String() string {
	return "FLAGS (" + strings.Join([]string(f), " ") + ")"
}

// FetchRFC822 is the raw message. Raw is nil when the server sent NIL. The
// bytes are passed through verbatim and need not be valid UTF-8.
type FetchRFC822 struct {
	Raw *string
}

func (f FetchRFC822) fetchAttr() {}
func (f FetchRFC822) String() string {
	return "RFC822 " + nstring(f.Raw)
}

type FetchRFC822Size uint32

func (f FetchRFC822Size) fetchAttr() {}
func (f FetchRFC822Size) String() string {
	return fmt.Sprintf("RFC822.SIZE %d", f)
}

// For CONDSTORE.
type FetchModSeq int64

func (f FetchModSeq) fetchAttr() {}
func (f FetchModSeq) String() string {
	return fmt.Sprintf("MODSEQ (%d)", f)
}

type FetchUID uint32

func (f FetchUID) fetchAttr() {}
func (f FetchUID) String() string {
	return fmt.Sprintf("UID %d", f)
}

// MailboxDatum is the payload of an untagged mailbox-state response.
type MailboxDatum interface {
	String() string
	mailboxDatum()
}

type MailboxFlags []string

func (m MailboxFlags) mailboxDatum() {}
func (m MailboxFlags) String() string {
	return "FLAGS (" + strings.Join([]string(m), " ") + ")"
}

// MailboxExists is the number of messages in the selected mailbox.
type MailboxExists uint32

func (m MailboxExists) mailboxDatum() {}
func (m MailboxExists) String() string {
	return fmt.Sprintf("%d EXISTS", uint32(m))
}

// MailboxRecent is the number of messages with the \Recent flag set.
type MailboxRecent uint32

func (m MailboxRecent) mailboxDatum() {}
func (m MailboxRecent) String() string {
	return fmt.Sprintf("%d RECENT", uint32(m))
}

// Response is one complete server response unit.
//
// String returns the canonical wire form of the response, without the
// terminating CRLF. Decoding the canonical form yields the same value.
type Response interface {
	String() string
	response()
}

// Done is the tagged completion response for the command with the same tag.
// Text is nil when the server sent no human-readable text, which also covers
// a response code followed by nothing but the separating space.
type Done struct {
	Tag    string
	Status Status
	Code   Code    // Nil if absent.
	Text   *string // Nil if absent.
}

func (r Done) response() {}
func (r Done) String() string {
	return r.Tag + " " + string(r.Status) + " " + respText(r.Code, r.Text)
}

// Cond is an untagged status/condition response.
type Cond struct {
	Status Status
	Code   Code    // Nil if absent.
	Text   *string // Nil if absent.
}

func (r Cond) response() {}
func (r Cond) String() string {
	return "* " + string(r.Status) + " " + respText(r.Code, r.Text)
}

// Capabilities is an untagged CAPABILITY response, listing capability names
// in server order.
type Capabilities []string

func (r Capabilities) response() {}
func (r Capabilities) String() string {
	return "* CAPABILITY " + strings.Join([]string(r), " ")
}

// MailboxData is an untagged mailbox-state response.
type MailboxData struct {
	Datum MailboxDatum
}

func (r MailboxData) response() {}
func (r MailboxData) String() string {
	return "* " + r.Datum.String()
}

// Fetch is an untagged FETCH response for the message with sequence number
// Num. Attrs holds the attributes in server order, duplicates preserved.
type Fetch struct {
	Num   uint32
	Attrs []FetchAttr
}

func (r Fetch) response() {}
func (r Fetch) String() string {
	l := make([]string, len(r.Attrs))
	for i, a := range r.Attrs {
		l[i] = a.String()
	}
	return fmt.Sprintf("* %d FETCH (%s)", r.Num, strings.Join(l, " "))
}

// Expunge is an untagged EXPUNGE response with the sequence number of the
// removed message.
type Expunge uint32

func (r Expunge) response() {}
func (r Expunge) String() string {
	return fmt.Sprintf("* %d EXPUNGE", uint32(r))
}

func respText(code Code, text *string) string {
	s := ""
	if code != nil {
		s = "[" + code.CodeString() + "]"
	}
	if text != nil {
		if code != nil {
			s += " "
		}
		s += *text
	}
	return s
}

// quote returns the quoted-string wire form. Only dquote and backslash need
// escaping, all other bytes are carried verbatim.
func quote(s string) string {
	r := []byte{'"'}
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			r = append(r, '\\')
		}
		r = append(r, s[i])
	}
	r = append(r, '"')
	return string(r)
}

func nstring(s *string) string {
	if s == nil {
		return "NIL"
	}
	return quote(*s)
}

func addresses(l []Address) string {
	if l == nil {
		return "NIL"
	}
	s := "("
	for _, a := range l {
		s += a.String()
	}
	return s + ")"
}
