package wire

import (
	"testing"
	"time"
)

func TestDecodeOrdersRoundTrip(t *testing.T) {
	payload := []byte(`{"host":"h","sheriff_name":"bob","utime":123456,"ncmds":1,"cmds":[
		{"name":"/bin/true","nickname":"t","group":"g","desired_runid":1,"sheriff_id":7,"force_quit":false}
	]}`)

	o, err := DecodeOrders(payload)
	if err != nil {
		t.Fatalf("DecodeOrders: %v", err)
	}
	if o.Host != "h" || o.SheriffName != "bob" || len(o.Cmds) != 1 {
		t.Fatalf("unexpected decode: %+v", o)
	}
	if o.Cmds[0].SheriffID != 7 || o.Cmds[0].DesiredRunID != 1 {
		t.Fatalf("unexpected cmd decode: %+v", o.Cmds[0])
	}
}

func TestDecodeOrdersRejectsUnknownField(t *testing.T) {
	payload := []byte(`{"host":"h","sheriff_name":"bob","utime":123,"cmds":[],"bogus":1}`)
	if _, err := DecodeOrders(payload); err == nil {
		t.Fatal("expected decode error for unknown field")
	}
}

func TestDecodeOrdersRejectsTrailingData(t *testing.T) {
	payload := []byte(`{"host":"h","sheriff_name":"bob","utime":123,"cmds":[]}{}`)
	if _, err := DecodeOrders(payload); err == nil {
		t.Fatal("expected decode error for trailing data")
	}
}

func TestDecodeOrdersRejectsMissingRequiredField(t *testing.T) {
	payload := []byte(`{"sheriff_name":"bob","utime":123,"cmds":[]}`)
	if _, err := DecodeOrders(payload); err == nil {
		t.Fatal("expected validation error for missing host")
	}
}

func TestEncodeInfoAndPrintf(t *testing.T) {
	info := Info{Utime: time.Now().UnixMicro(), Host: "h", Cmds: []InfoCmd{{SheriffID: 1}}}
	if _, err := EncodeInfo(info); err != nil {
		t.Fatalf("EncodeInfo: %v", err)
	}
	p := Printf{DeputyName: "h", SheriffID: 1, Text: "hello", Utime: time.Now().UnixMicro()}
	if _, err := EncodePrintf(p); err != nil {
		t.Fatalf("EncodePrintf: %v", err)
	}
}
