package chat

import (
	"strings"
	"time"
)

const historyCap = 50

// Session is the process-wide mutable state for one interactive run. It is an
// explicit value passed to each component, not a singleton, and is mutated by
// the executor and monitor only. Callers serialize access (one action in
// flight at a time); Session itself takes no locks.
type Session struct {
	Mode        string
	Contacts    []Contact
	LastContact *Contact
	AutoReply   bool

	history map[string][]HistoryEntry
}

func NewSession(mode string) *Session {
	return &Session{
		Mode:    strings.TrimSpace(mode),
		history: make(map[string][]HistoryEntry),
	}
}

// ReplaceContacts swaps in a fresh chat-list snapshot. Snapshots are never
// merged; each listChats call replaces the previous one wholesale.
func (s *Session) ReplaceContacts(contacts []Contact) {
	if s == nil {
		return
	}
	s.Contacts = contacts
}

func (s *Session) ContactNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Contacts))
	for _, c := range s.Contacts {
		names = append(names, c.DisplayName)
	}
	return names
}

func (s *Session) SetLastContact(c Contact) {
	if s == nil {
		return
	}
	s.LastContact = &c
}

func (s *Session) LastContactName() string {
	if s == nil || s.LastContact == nil {
		return ""
	}
	return s.LastContact.DisplayName
}

// AppendHistory records one observed message for a contact, evicting the
// oldest entry once the per-contact cap of 50 is reached.
func (s *Session) AppendHistory(contactName string, entry HistoryEntry) {
	if s == nil {
		return
	}
	if s.history == nil {
		s.history = make(map[string][]HistoryEntry)
	}
	key := strings.ToLower(strings.TrimSpace(contactName))
	if key == "" {
		return
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	entries := append(s.history[key], entry)
	if len(entries) > historyCap {
		entries = entries[len(entries)-historyCap:]
	}
	s.history[key] = entries
}

func (s *Session) History(contactName string) []HistoryEntry {
	if s == nil {
		return nil
	}
	return s.history[strings.ToLower(strings.TrimSpace(contactName))]
}
