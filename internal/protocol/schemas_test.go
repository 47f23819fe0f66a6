package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"stackhold.gg/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	cmdSchema := compile("cmd.schema.json")
	updateSchema := compile("update.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "player_name":"bot1",
	  "capabilities":{"max_queue":8},
	  "auth":{"resume_token":"f81d4fae-7dec-11d0-a765-00a0c91e6bf6"}
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "player_id":"P1",
	  "resume_token":"f81d4fae-7dec-11d0-a765-00a0c91e6bf6",
	  "store_params":{"tick_rate_hz":10},
	  "containers":[
	    {"container":"c0.1","role":"MAIN","capacity":16},
	    {"container":"c1.1","role":"EQUIP","capacity":4}
	  ],
	  "catalogs":{
	    "item_palette":{"digest":"deadbeef","count":12},
	    "item_defs_digest":"deadbeef"
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var cmd any
	_ = json.Unmarshal([]byte(`{
	  "type":"CMD",
	  "protocol_version":"1.0",
	  "commands":[
	    {"id":1,"op":"SET","container":"c0.1","slot":0,"stack":{"item":3,"count":40,"max_stack":64}},
	    {"id":2,"op":"SET","container":"c0.1","slot":5,"stack":null},
	    {"id":3,"op":"MOVE","from":"c0.1","from_slot":0,"to":"c1.1","to_slot":2,"amount":30,"allow_swap":true}
	  ]
	}`), &cmd)
	validate(cmdSchema, cmd)

	var update any
	_ = json.Unmarshal([]byte(`{
	  "type":"UPDATE",
	  "protocol_version":"1.0",
	  "t":42,
	  "results":[
	    {"id":1,"ok":true},
	    {"id":3,"ok":false,"code":"E_DESTINATION_FULL","message":"destination stack is full"}
	  ],
	  "containers":[
	    {"container":"c0.1","changes":[
	      {"slot":0,"stack":{"item":3,"count":6,"max_stack":64}},
	      {"slot":5,"stack":null}
	    ]}
	  ]
	}`), &update)
	validate(updateSchema, update)
}

// Messages the server actually emits must satisfy the published schemas.
func TestSchemas_AcceptMarshaledMessages(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "update.schema.json")
	schema, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	msg := protocol.UpdateMsg{
		Type:            protocol.TypeUpdate,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		Results: []protocol.CommandResult{
			{ID: 9, OK: false, Code: protocol.ErrSourceSlotEmpty, Message: "source slot is empty"},
		},
		Containers: []protocol.ContainerUpdate{
			{Container: "c2.1", Changes: []protocol.SlotChange{
				{Slot: 1, Stack: &protocol.ItemStack{Item: 2, Count: 10, MaxStack: 64}},
				{Slot: 3, Stack: nil},
			}},
		},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := schema.Validate(v); err != nil {
		t.Fatalf("validate marshaled UPDATE: %v", err)
	}
}
