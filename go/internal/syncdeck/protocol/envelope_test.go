package protocol

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantOK      bool
		wantVersion string
		wantDeckID  string
		wantTS      int64
	}{
		{
			name:        "well formed",
			raw:         `{"type":"reveal-sync","version":"1.0.0","action":"state","deckId":"deck-1","role":"instructor","source":"x","ts":1700000000000,"payload":{}}`,
			wantOK:      true,
			wantVersion: "1.0.0",
			wantDeckID:  "deck-1",
			wantTS:      1700000000000,
		},
		{
			name:        "numeric version and deck id",
			raw:         `{"type":"reveal-sync","version":1,"action":"ready","deckId":42,"role":"instructor","ts":5,"payload":{}}`,
			wantOK:      true,
			wantVersion: "1",
			wantDeckID:  "42",
			wantTS:      5,
		},
		{
			name:   "fractional ts",
			raw:    `{"type":"reveal-sync","action":"state","role":"instructor","ts":1700000000000.75,"payload":{}}`,
			wantOK: true,
			wantTS: 1700000000000,
		},
		{
			name:   "string ts ignored",
			raw:    `{"type":"reveal-sync","action":"state","ts":"soon"}`,
			wantOK: true,
		},
		{name: "wrong type", raw: `{"type":"other","action":"state"}`},
		{name: "missing action", raw: `{"type":"reveal-sync"}`},
		{name: "numeric action", raw: `{"type":"reveal-sync","action":3}`},
		{name: "not an object", raw: `["reveal-sync"]`},
		{name: "invalid json", raw: `{"type":"reveal-sync",`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := Decode([]byte(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if env.Version != tt.wantVersion {
				t.Fatalf("expected version %q, got %q", tt.wantVersion, env.Version)
			}
			gotDeck := ""
			if env.DeckID != nil {
				gotDeck = *env.DeckID
			}
			if gotDeck != tt.wantDeckID {
				t.Fatalf("expected deckId %q, got %q", tt.wantDeckID, gotDeck)
			}
			if env.TS != tt.wantTS {
				t.Fatalf("expected ts %d, got %d", tt.wantTS, env.TS)
			}
		})
	}
}

func TestDecodeKeepsPayload(t *testing.T) {
	env, ok := Decode([]byte(`{"type":"reveal-sync","action":"command","payload":{"name":"setState","payload":{"state":{"indexh":1}}}}`))
	if !ok {
		t.Fatal("expected envelope")
	}
	if string(env.Payload) != `{"name":"setState","payload":{"state":{"indexh":1}}}` {
		t.Fatalf("expected payload kept verbatim, got %s", env.Payload)
	}
	if env.DeckID != nil {
		t.Fatalf("expected no deck id, got %q", *env.DeckID)
	}
}
