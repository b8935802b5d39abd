// Package mention implements the mention-autocomplete editor model. The
// editor operates over a sequence of text runs and atomic mention tokens
// with an explicit caret offset, independent of any rendering surface, so
// every behavior is testable without a UI.
package mention

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/daybook-labs/daybook/internal/profile"
)

// Scheme is the mention URI scheme prepended to serialized tokens.
const Scheme = "nostr:"

// Debounce defaults. Explicit identifiers resolve quickly; free-text search
// waits longer so the remote service is not flooded while typing.
const (
	DefaultSearchDebounce = 500 * time.Millisecond
	DefaultFetchDebounce  = 300 * time.Millisecond
)

// completeIdentifierLen is the minimum length of the bech32 body (after the
// "npub1"/"nprofile1" prefix) for an identifier to count as syntactically
// complete rather than still being typed.
const completeIdentifierLen = 58

var (
	// identifierPattern matches a trailing, possibly partial, explicit
	// identifier of either supported kind.
	identifierPattern = regexp.MustCompile(`(nostr:)?(npub1|nprofile1)([023456789acdefghjklmnpqrstuvwxyz]+)$`)
	// wordPattern matches a trailing "@word" mention trigger.
	wordPattern = regexp.MustCompile(`@([\p{L}\p{N}_]{2,})$`)
)

// Searcher is the profile lookup surface the editor dispatches to.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]profile.Profile, error)
	FetchByIdentity(ctx context.Context, pubkey string) (*profile.Profile, error)
}

// Token is an atomic, non-character-editable mention inside the buffer.
type Token struct {
	Raw     string           // the trigger text that was replaced
	PubKey  string           // resolved identity key (hex)
	Profile *profile.Profile // resolved display profile, may be nil
}

// Canonical returns the token's serialized plain-text form.
func (t *Token) Canonical() string {
	npub, err := nip19.EncodePublicKey(t.PubKey)
	if err != nil {
		return Scheme + t.PubKey
	}
	return Scheme + npub
}

// Display returns the token as shown in the editor: @name, or a shortened
// identity when no profile is known.
func (t *Token) Display() string {
	if t.Profile != nil && t.Profile.Label() != "" {
		return "@" + t.Profile.Label()
	}
	return "@" + profile.ShortKey(t.PubKey)
}

// Segment is one element of the display structure: a text run or a token.
type Segment struct {
	Text  string
	Token *Token
}

func (s Segment) plain() string {
	if s.Token != nil {
		return s.Token.Canonical()
	}
	return s.Text
}

func (s Segment) plainLen() int {
	return utf8.RuneCountInString(s.plain())
}

type triggerKind int

const (
	triggerNone triggerKind = iota
	triggerWord
	triggerIdentifier
)

type trigger struct {
	kind       triggerKind
	start, end int    // rune offsets into the plain text
	raw        string // matched trigger text
	query      string // search text or bech32 identifier
}

// Editor is the mention-autocomplete editor model. All methods are safe for
// concurrent use; asynchronous search results are applied under the same
// lock and discarded when a newer keystroke superseded them.
type Editor struct {
	searcher       Searcher
	log            *slog.Logger
	searchDebounce time.Duration
	fetchDebounce  time.Duration
	limit          int
	notify         func()

	mu          sync.Mutex
	segs        []Segment
	caret       int // rune offset into plain text
	composing   bool
	seq         uint64
	timer       *time.Timer // single-slot debounce
	trig        trigger
	suggestions []profile.Profile
	highlighted int
	open        bool
}

// Option configures an Editor.
type Option func(*Editor)

// WithDebounce overrides the search and fetch debounce intervals.
func WithDebounce(search, fetch time.Duration) Option {
	return func(e *Editor) {
		e.searchDebounce = search
		e.fetchDebounce = fetch
	}
}

// WithLimit sets the suggestion list size requested from the searcher.
func WithLimit(n int) Option {
	return func(e *Editor) { e.limit = n }
}

// WithNotify registers a callback invoked (without the lock held) whenever
// the suggestion list changes.
func WithNotify(fn func()) Option {
	return func(e *Editor) { e.notify = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.log = l }
}

// NewEditor creates an empty editor dispatching to searcher.
func NewEditor(searcher Searcher, opts ...Option) *Editor {
	e := &Editor{
		searcher:       searcher,
		log:            slog.Default(),
		searchDebounce: DefaultSearchDebounce,
		fetchDebounce:  DefaultFetchDebounce,
		limit:          10,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlainText returns the canonical plain-text value of the buffer, with each
// token serialized to its scheme:identifier form.
func (e *Editor) PlainText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plainTextLocked()
}

func (e *Editor) plainTextLocked() string {
	var b strings.Builder
	for _, s := range e.segs {
		b.WriteString(s.plain())
	}
	return b.String()
}

// Segments returns a copy of the display structure.
func (e *Editor) Segments() []Segment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Segment, len(e.segs))
	copy(out, e.segs)
	return out
}

// Caret returns the caret's rune offset into the plain text.
func (e *Editor) Caret() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caret
}

// Suggestions returns the current suggestion list.
func (e *Editor) Suggestions() []profile.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]profile.Profile, len(e.suggestions))
	copy(out, e.suggestions)
	return out
}

// Highlighted returns the highlighted suggestion index.
func (e *Editor) Highlighted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.highlighted
}

// DropdownOpen reports whether the suggestion dropdown is showing.
func (e *Editor) DropdownOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// SetComposing marks the start or end of an IME composition or undo/redo
// batch. While set, token-atomicity enforcement is suspended: a deletion
// adjacent to a token dissolves it into editable text instead of removing it
// wholly, so native composition is never corrupted.
func (e *Editor) SetComposing(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.composing = on
}

// SetCaret moves the caret to the given rune offset, clamped to the buffer
// and snapped out of token interiors.
func (e *Editor) SetCaret(pos int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caret = e.snapLocked(pos)
	e.recomputeLocked()
}

// InsertText inserts text at the caret and advances it.
func (e *Editor) InsertText(text string) {
	if text == "" {
		return
	}
	e.mu.Lock()
	idx, off := e.locateLocked(e.caret)
	if idx < len(e.segs) && e.segs[idx].Token == nil {
		r := []rune(e.segs[idx].Text)
		e.segs[idx].Text = string(r[:off]) + text + string(r[off:])
	} else {
		// Boundary position: splice in a fresh text run.
		seg := Segment{Text: text}
		e.segs = append(e.segs[:idx], append([]Segment{seg}, e.segs[idx:]...)...)
	}
	e.caret += utf8.RuneCountInString(text)
	e.normalizeLocked()
	e.recomputeLocked()
	e.mu.Unlock()
}

// Backspace deletes backwards from the caret. A token adjacent to the caret
// is removed wholly, never partially, unless composition suspended
// atomicity, in which case it dissolves into its canonical text first.
func (e *Editor) Backspace() {
	e.mu.Lock()
	if e.caret == 0 {
		e.mu.Unlock()
		return
	}
	idx, off := e.locateLocked(e.caret)
	if off == 0 {
		idx--
		if idx < 0 {
			e.mu.Unlock()
			return
		}
		off = e.segs[idx].plainLen()
	}
	seg := e.segs[idx]
	if seg.Token != nil {
		if e.composing {
			e.dissolveLocked(idx)
			e.mu.Unlock()
			e.Backspace()
			return
		}
		e.removeSegLocked(idx)
	} else {
		r := []rune(seg.Text)
		e.segs[idx].Text = string(r[:off-1]) + string(r[off:])
		e.caret--
	}
	e.normalizeLocked()
	e.recomputeLocked()
	e.mu.Unlock()
}

// Delete deletes forwards from the caret with the same token atomicity as
// Backspace.
func (e *Editor) Delete() {
	e.mu.Lock()
	idx, off := e.locateLocked(e.caret)
	if idx >= len(e.segs) {
		e.mu.Unlock()
		return
	}
	seg := e.segs[idx]
	if off == seg.plainLen() {
		idx++
		off = 0
		if idx >= len(e.segs) {
			e.mu.Unlock()
			return
		}
		seg = e.segs[idx]
	}
	if seg.Token != nil {
		if e.composing {
			e.dissolveLocked(idx)
			e.mu.Unlock()
			e.Delete()
			return
		}
		start := e.segStartLocked(idx)
		e.removeSegLocked(idx)
		if e.caret > start {
			e.caret = start
		}
	} else {
		r := []rune(seg.Text)
		e.segs[idx].Text = string(r[:off]) + string(r[off+1:])
	}
	e.normalizeLocked()
	e.recomputeLocked()
	e.mu.Unlock()
}

// KeyDown moves the highlight down, clamped to the suggestion list.
func (e *Editor) KeyDown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open || len(e.suggestions) == 0 {
		return
	}
	if e.highlighted < len(e.suggestions)-1 {
		e.highlighted++
	}
}

// KeyUp moves the highlight up, clamped to zero.
func (e *Editor) KeyUp() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open || len(e.suggestions) == 0 {
		return
	}
	if e.highlighted > 0 {
		e.highlighted--
	}
}

// KeyEnter accepts the highlighted suggestion. It reports whether a
// suggestion was consumed, so the caller knows whether to fall through to a
// newline insertion.
func (e *Editor) KeyEnter() bool {
	e.mu.Lock()
	i := e.highlighted
	ok := e.open && i >= 0 && i < len(e.suggestions)
	e.mu.Unlock()
	if !ok {
		return false
	}
	return e.Accept(i)
}

// KeyEscape closes the dropdown without mutating the buffer.
func (e *Editor) KeyEscape() {
	e.mu.Lock()
	e.seq++
	e.stopTimerLocked()
	changed := e.open
	e.open = false
	e.suggestions = nil
	e.highlighted = 0
	e.mu.Unlock()
	if changed {
		e.notifyChanged()
	}
}

// Accept replaces the active trigger span with an atomic token for the i-th
// suggestion, appends two separator spaces, and moves the caret past them.
func (e *Editor) Accept(i int) bool {
	e.mu.Lock()
	if !e.open || i < 0 || i >= len(e.suggestions) || e.trig.kind == triggerNone {
		e.mu.Unlock()
		return false
	}
	p := e.suggestions[i]
	tok := &Token{Raw: e.trig.raw, PubKey: p.PubKey, Profile: &p}
	start, end := e.trig.start, e.trig.end

	e.replaceSpanLocked(start, end, []Segment{{Token: tok}, {Text: "  "}})
	e.caret = start + tok.plainLen() + 2

	e.seq++
	e.stopTimerLocked()
	e.open = false
	e.suggestions = nil
	e.highlighted = 0
	e.trig = trigger{}
	e.normalizeLocked()
	e.mu.Unlock()
	e.notifyChanged()
	return true
}

func (t *Token) plainLen() int {
	return utf8.RuneCountInString(t.Canonical())
}

// --- internal geometry -----------------------------------------------------

// locateLocked maps a plain-text rune offset to (segment index, offset
// within segment). An offset landing exactly at a boundary belongs to the
// following segment with offset 0, except at the very end of the buffer.
func (e *Editor) locateLocked(pos int) (int, int) {
	cur := 0
	for i, s := range e.segs {
		l := s.plainLen()
		if pos < cur+l {
			return i, pos - cur
		}
		cur += l
	}
	return len(e.segs), 0
}

func (e *Editor) segStartLocked(idx int) int {
	cur := 0
	for i := 0; i < idx && i < len(e.segs); i++ {
		cur += e.segs[i].plainLen()
	}
	return cur
}

func (e *Editor) totalLenLocked() int {
	cur := 0
	for _, s := range e.segs {
		cur += s.plainLen()
	}
	return cur
}

// snapLocked clamps pos to the buffer and moves it out of any token interior
// to the token's end.
func (e *Editor) snapLocked(pos int) int {
	if pos < 0 {
		return 0
	}
	total := e.totalLenLocked()
	if pos > total {
		return total
	}
	cur := 0
	for _, s := range e.segs {
		l := s.plainLen()
		if pos > cur && pos < cur+l && s.Token != nil {
			return cur + l
		}
		cur += l
	}
	return pos
}

func (e *Editor) removeSegLocked(idx int) {
	start := e.segStartLocked(idx)
	l := e.segs[idx].plainLen()
	e.segs = append(e.segs[:idx], e.segs[idx+1:]...)
	if e.caret >= start+l {
		e.caret -= l
	} else if e.caret > start {
		e.caret = start
	}
}

// dissolveLocked converts a token back into an editable text run of its
// canonical form (atomicity suspension path).
func (e *Editor) dissolveLocked(idx int) {
	e.segs[idx] = Segment{Text: e.segs[idx].plain()}
}

// replaceSpanLocked removes the plain-text range [start, end) and splices in
// the replacement segments at start. Trigger spans only ever cover text
// runs, so token segments inside the range would be a logic error upstream;
// they are removed wholly here regardless.
func (e *Editor) replaceSpanLocked(start, end int, replacement []Segment) {
	var out []Segment
	cur := 0
	inserted := false
	for _, s := range e.segs {
		l := s.plainLen()
		segStart, segEnd := cur, cur+l
		cur = segEnd
		if segEnd <= start || segStart >= end {
			if segStart >= end && !inserted {
				out = append(out, replacement...)
				inserted = true
			}
			out = append(out, s)
			continue
		}
		if s.Token != nil {
			continue // covered tokens drop wholly
		}
		r := []rune(s.Text)
		if segStart < start {
			out = append(out, Segment{Text: string(r[:start-segStart])})
		}
		if !inserted {
			out = append(out, replacement...)
			inserted = true
		}
		if segEnd > end {
			out = append(out, Segment{Text: string(r[end-segStart:])})
		}
	}
	if !inserted {
		out = append(out, replacement...)
	}
	e.segs = out
}

func (e *Editor) normalizeLocked() {
	var out []Segment
	for _, s := range e.segs {
		if s.Token == nil && s.Text == "" {
			continue
		}
		if n := len(out); n > 0 && s.Token == nil && out[n-1].Token == nil {
			out[n-1].Text += s.Text
			continue
		}
		out = append(out, s)
	}
	e.segs = out
}

// --- trigger detection & dispatch ------------------------------------------

// recomputeLocked classifies the text immediately preceding the caret and
// arms the single-slot debounce timer. Every call supersedes the previous
// pending request: stale in-flight responses are discarded by sequence.
func (e *Editor) recomputeLocked() {
	e.seq++
	e.stopTimerLocked()

	tail, tailStart := e.textBeforeCaretLocked()
	trig, ready := classify(tail, tailStart)
	e.trig = trig

	if trig.kind == triggerNone || !ready {
		if e.open || e.suggestions != nil {
			e.open = false
			e.suggestions = nil
			e.highlighted = 0
			go e.notifyChanged()
		}
		return
	}

	seq := e.seq
	delay := e.searchDebounce
	if trig.kind == triggerIdentifier {
		delay = e.fetchDebounce
	}
	t := trig
	e.timer = time.AfterFunc(delay, func() { e.dispatch(seq, t) })
}

// textBeforeCaretLocked returns the text-run content between the nearest
// preceding token boundary (or buffer start) and the caret, plus the plain
// offset where that text begins. A token always breaks a trigger candidate.
func (e *Editor) textBeforeCaretLocked() (string, int) {
	idx, off := e.locateLocked(e.caret)
	if idx >= len(e.segs) {
		if idx == 0 {
			return "", 0
		}
		last := e.segs[idx-1]
		if last.Token != nil {
			return "", e.caret
		}
		return last.Text, e.caret - last.plainLen()
	}
	seg := e.segs[idx]
	if seg.Token != nil {
		// Caret sits at a boundary before this token; the candidate text is
		// the run that ends here, if any.
		if off == 0 && idx > 0 && e.segs[idx-1].Token == nil {
			prev := e.segs[idx-1]
			return prev.Text, e.caret - prev.plainLen()
		}
		return "", e.caret
	}
	r := []rune(seg.Text)
	return string(r[:off]), e.caret - off
}

// classify matches tail against the two mutually exclusive trigger patterns.
// ready reports whether the trigger should actually dispatch (an explicit
// identifier that is still too short matches but is not ready).
func classify(tail string, tailStart int) (trigger, bool) {
	if m := identifierPattern.FindStringSubmatchIndex(tail); m != nil {
		raw := tail[m[0]:]
		body := tail[m[6]:m[7]]
		ident := tail[m[4]:m[5]] + body // prefix + body, without any nostr: scheme
		start := tailStart + utf8.RuneCountInString(tail[:m[0]])
		t := trigger{
			kind:  triggerIdentifier,
			start: start,
			end:   tailStart + utf8.RuneCountInString(tail),
			raw:   raw,
			query: ident,
		}
		return t, len(body) >= completeIdentifierLen
	}
	if m := wordPattern.FindStringSubmatchIndex(tail); m != nil {
		raw := tail[m[0]:]
		start := tailStart + utf8.RuneCountInString(tail[:m[0]])
		t := trigger{
			kind:  triggerWord,
			start: start,
			end:   tailStart + utf8.RuneCountInString(tail),
			raw:   raw,
			query: tail[m[2]:m[3]],
		}
		return t, true
	}
	return trigger{}, false
}

func (e *Editor) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// dispatch performs the remote lookup for a fired debounce timer. Results
// are applied only when no newer keystroke has superseded the request.
func (e *Editor) dispatch(seq uint64, t trigger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var results []profile.Profile
	switch t.kind {
	case triggerWord:
		found, err := e.searcher.Search(ctx, t.query, e.limit)
		if err != nil {
			e.log.Debug("mention search failed", slog.String("query", t.query), slog.String("error", err.Error()))
		} else {
			results = found
		}
	case triggerIdentifier:
		pk, ok := decodeIdentifier(t.query)
		if !ok {
			break
		}
		p, err := e.searcher.FetchByIdentity(ctx, pk)
		if err != nil {
			e.log.Debug("mention fetch failed", slog.String("error", err.Error()))
			break
		}
		if p == nil {
			p = &profile.Profile{PubKey: pk}
		}
		results = []profile.Profile{*p}
	}

	e.mu.Lock()
	if seq != e.seq {
		e.mu.Unlock()
		return // superseded by a newer keystroke
	}
	e.suggestions = results
	e.highlighted = 0
	e.open = len(results) > 0
	e.mu.Unlock()
	e.notifyChanged()
}

// decodeIdentifier extracts the hex public key from an npub or nprofile
// bech32 identifier.
func decodeIdentifier(ident string) (string, bool) {
	prefix, value, err := nip19.Decode(ident)
	if err != nil {
		return "", false
	}
	switch prefix {
	case "npub":
		pk, ok := value.(string)
		return pk, ok
	case "nprofile":
		ptr, ok := value.(nostr.ProfilePointer)
		if !ok {
			return "", false
		}
		return ptr.PublicKey, true
	}
	return "", false
}

func (e *Editor) notifyChanged() {
	if e.notify != nil {
		e.notify()
	}
}
