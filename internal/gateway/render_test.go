package gateway

import (
	"strings"
	"testing"
)

func TestRenderEmailHTML_Markdown(t *testing.T) {
	html, err := renderEmailHTML("Subject", "# Hello\n\n- a\n- b\n\n`code`")
	if err != nil {
		t.Fatalf("renderEmailHTML error: %v", err)
	}
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Fatalf("expected doctype in rendered html")
	}
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "Hello") {
		t.Fatalf("expected markdown heading in rendered html")
	}
	if !strings.Contains(html, "<ul>") || !strings.Contains(html, "<li>") {
		t.Fatalf("expected markdown list in rendered html")
	}
	if !strings.Contains(html, "<code>code</code>") {
		t.Fatalf("expected inline code in rendered html")
	}
}

func TestRenderEmailHTML_EmptyBody(t *testing.T) {
	html, err := renderEmailHTML("Subject", "   ")
	if err != nil {
		t.Fatalf("renderEmailHTML error: %v", err)
	}
	if !strings.Contains(html, "(empty)") {
		t.Fatalf("expected placeholder body, got: %s", html)
	}
}

func TestBuildEmailPreheader(t *testing.T) {
	got := buildEmailPreheader("line one\r\nline   two")
	if got != "line one line two" {
		t.Fatalf("preheader = %q", got)
	}
	long := strings.Repeat("word ", 100)
	got = buildEmailPreheader(long)
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected truncated preheader, got %q", got)
	}
}

func TestBuildHTMLEmail_Headers(t *testing.T) {
	msg := buildHTMLEmail("from@example.com", "to@example.com", "Subject",
		"<p>hi</p>", "abc@mail", []string{"root@mail", "abc@mail"})
	if !strings.Contains(msg, "Content-Type: text/html; charset=UTF-8") {
		t.Fatalf("expected html content-type")
	}
	if !strings.Contains(msg, "In-Reply-To: <abc@mail>") {
		t.Fatalf("expected In-Reply-To header")
	}
	if !strings.Contains(msg, "References: <root@mail> <abc@mail>") {
		t.Fatalf("expected References header")
	}
	if !strings.Contains(msg, "<p>hi</p>") {
		t.Fatalf("expected body in message")
	}
}

func TestMessageIDHelpers(t *testing.T) {
	if got := canonicalMessageID(" <id@host> "); got != "id@host" {
		t.Fatalf("canonicalMessageID = %q", got)
	}
	ids := parseMessageIDList("<a@h>\r\n <b@h> <a@h>")
	if len(ids) != 2 || ids[0] != "a@h" || ids[1] != "b@h" {
		t.Fatalf("parseMessageIDList = %v", ids)
	}
	ids = parseMessageIDList("a@h b@h")
	if len(ids) != 2 {
		t.Fatalf("fallback split = %v", ids)
	}
	refs := buildReferencesForReply([]string{"a@h", "b@h"}, "b@h")
	if len(refs) != 2 || refs[1] != "b@h" {
		t.Fatalf("buildReferencesForReply = %v", refs)
	}
}
