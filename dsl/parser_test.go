package dsl_test

import (
	"strings"
	"testing"

	"github.com/ByLCY/offerpress/dsl"
)

const sampleTheme = `
theme Classic v1 {
  meta {
    title: "Offer"
    keywords: [
      "offer"
      "windows"
    ]
  }

  resources {
    font Body {
      src: "embed:go/regular"
    }

    color Accent = #1F4E79

    style body {
      font: Body
      size: 9pt
    }
    style heading extends body {
      color: Accent
    }
  }

  page A4 portrait margin 18mm {
    footer height 14mm
    table padding 1.2mm preview 18mm {
      column preview label "Preview" width 22mm align center kind image
      column name label "Item" kind text
    }
  }
}
`

func TestParseTheme(t *testing.T) {
	doc, err := dsl.ParseString(sampleTheme)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Name != "Classic" || doc.Version != "v1" {
		t.Fatalf("unexpected header: %s %s", doc.Name, doc.Version)
	}
	if len(doc.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(doc.Sections))
	}
	kinds := []string{doc.Sections[0].Kind(), doc.Sections[1].Kind(), doc.Sections[2].Kind()}
	if strings.Join(kinds, ",") != "meta,resources,page" {
		t.Fatalf("unexpected section order: %v", kinds)
	}

	meta := doc.Sections[0].Meta
	title := meta.Block.Statements[0].Assignment
	if title == nil || title.Key != "title" || title.Value.Text() != "Offer" {
		t.Fatalf("expected title assignment, got %+v", meta.Block.Statements[0])
	}
	keywords := meta.Block.Statements[1].Assignment
	if got := keywords.Value.Strings(); len(got) != 2 || got[1] != "windows" {
		t.Fatalf("unexpected keywords: %v", got)
	}

	res := doc.Sections[1].Resources
	color := res.Block.Statements[1].Command
	if color == nil || color.Name != "color" || color.Args[len(color.Args)-1].Value != "#1F4E79" {
		t.Fatalf("unexpected color command: %+v", res.Block.Statements[1])
	}
	style := res.Block.Statements[3].Command
	if style == nil || len(style.Args) != 3 || style.Args[1].Value != "extends" {
		t.Fatalf("unexpected style command: %+v", res.Block.Statements[3])
	}
	font := res.Block.Statements[2].Command.Block.Statements[0].Assignment
	if font.Key != "font" || font.Value.Text() != "Body" {
		t.Fatalf("style font should be an identifier, got %+v", font.Value)
	}

	page := doc.Sections[2].Page
	if page.Spec.Size != "A4" || len(page.Spec.Params) != 3 || page.Spec.Params[2].Value != "18mm" {
		t.Fatalf("unexpected page spec: %+v", page.Spec)
	}
	table := page.Block.Statements[1].Command
	if table == nil || table.Name != "table" || len(table.Block.Statements) != 2 {
		t.Fatalf("expected table with 2 columns, got %+v", page.Block.Statements[1])
	}
	_, tableAttrs := dsl.Args(table.Args, false)
	if tableAttrs["preview"] != "18mm" {
		t.Fatalf("unexpected table attrs: %v", tableAttrs)
	}

	lead, attrs := dsl.Args(table.Block.Statements[0].Command.Args, true)
	if lead != "preview" {
		t.Fatalf("expected column key preview, got %q", lead)
	}
	if attrs["label"] != "Preview" || attrs["width"] != "22mm" || attrs["kind"] != "image" {
		t.Fatalf("unexpected column attrs: %v", attrs)
	}
}

func TestParseRejectsMissingHeader(t *testing.T) {
	if _, err := dsl.ParseString(`doc Old v1 { }`); err == nil {
		t.Fatal("expected error for non-theme document")
	}
}

func TestParseLongColorIsOneToken(t *testing.T) {
	doc, err := dsl.ParseString("theme X v1 {\n  resources {\n    color Ink = #1E1E1E\n    color Veil = #1E1E1E80\n  }\n}\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	stmts := doc.Sections[0].Resources.Block.Statements
	for i, want := range []string{"#1E1E1E", "#1E1E1E80"} {
		args := stmts[i].Command.Args
		if got := args[len(args)-1]; got.Type != "Color" || got.Value != want {
			t.Fatalf("color %d: got %+v", i, got)
		}
	}
}

func TestParseRejectsShortColor(t *testing.T) {
	if _, err := dsl.ParseString("theme X v1 {\n  resources {\n    color Ink = #12\n  }\n}\n"); err == nil {
		t.Fatal("expected lexer error for #12")
	}
}

func TestArgsDropsDanglingKey(t *testing.T) {
	doc, err := dsl.ParseString("theme X v1 {\n  page A4 {\n    footer height 12mm extra\n  }\n}\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	cmd := doc.Sections[0].Page.Block.Statements[0].Command
	lead, attrs := dsl.Args(cmd.Args, false)
	if lead != "" || len(attrs) != 1 || attrs["height"] != "12mm" {
		t.Fatalf("unexpected args: %q %v", lead, attrs)
	}
}
