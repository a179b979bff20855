package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/backkem/v2g/pkg/exi"
	"github.com/backkem/v2g/pkg/grammar"
)

const stopDocument = `V2G_Message:
  - Header:
      - SessionID: "0000000000000007"
  - Body:
      - SessionStopReq:
          - ChargingSession: Terminate
`

func mainSchema(t *testing.T) *grammar.Schema {
	t.Helper()
	s, err := grammar.MustDefault().Resolve(grammar.PhaseMainExchange)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return s
}

func TestReadDocument(t *testing.T) {
	e, err := readDocument(strings.NewReader(stopDocument), mainSchema(t))
	if err != nil {
		t.Fatalf("readDocument() error = %v", err)
	}

	want := exi.NewElement("V2G_Message",
		exi.NewElement("Header", exi.Octets("SessionID", []byte{0, 0, 0, 0, 0, 0, 0, 7})),
		exi.NewElement("Body",
			exi.NewElement("SessionStopReq", exi.Text("ChargingSession", "Terminate"))),
	)
	if !e.Equal(want) {
		t.Errorf("readDocument() = %+v, want %+v", e, want)
	}
}

func TestReadDocument_Typed(t *testing.T) {
	s, err := grammar.MustDefault().Resolve(grammar.PhaseHandshake)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	doc := `supportedAppProtocolRes:
  - ResponseCode: OK_SuccessfulNegotiation
  - SchemaID: 0x0a
`
	e, err := readDocument(strings.NewReader(doc), s)
	if err != nil {
		t.Fatalf("readDocument() error = %v", err)
	}
	if v, ok := e.UintOf("SchemaID"); !ok || v != 10 {
		t.Errorf("SchemaID = %v, %v, want 10", v, ok)
	}
}

func TestReadDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "V2G_Message: [\n"},
		{"two keys", "Header: []\nBody: []\n"},
		{"unknown element", "Frobnicate: []\n"},
		{"complex scalar", "V2G_Message: 1\n"},
		{"simple sequence", "SessionID: [1]\n"},
		{"bad hex", "SessionID: xyz\n"},
		{"child not mapping", "V2G_Message:\n  - Header\n"},
	}
	s := mainSchema(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readDocument(strings.NewReader(tt.doc), s); err == nil {
				t.Error("readDocument() error = nil, want error")
			}
		})
	}

	if _, err := readDocument(strings.NewReader("- a\n"), s); !errors.Is(err, errDocumentShape) {
		t.Errorf("readDocument(sequence) error = %v, want errDocumentShape", err)
	}
}

func TestWriteDocument(t *testing.T) {
	e, err := readDocument(strings.NewReader(stopDocument), mainSchema(t))
	if err != nil {
		t.Fatalf("readDocument() error = %v", err)
	}
	var buf bytes.Buffer
	if err := writeDocument(&buf, e); err != nil {
		t.Fatalf("writeDocument() error = %v", err)
	}
	back, err := readDocument(&buf, mainSchema(t))
	if err != nil {
		t.Fatalf("readDocument(written) error = %v", err)
	}
	if !back.Equal(e) {
		t.Errorf("written document = %+v, want %+v", back, e)
	}
}

func TestWriteDocument_Values(t *testing.T) {
	e := exi.NewElement("Root",
		exi.NewElement("Empty"),
		exi.Uint("U", 42),
		exi.Int("I", -3),
		exi.Bool("B", true),
		exi.Text("S", "123"),
	)
	var buf bytes.Buffer
	if err := writeDocument(&buf, e); err != nil {
		t.Fatalf("writeDocument() error = %v", err)
	}
	for _, want := range []string{"Empty: []", "U: 42", "I: -3", "B: true", `S: "123"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("writeDocument() = %q, missing %q", buf.String(), want)
		}
	}
}
