package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{Type: TypeSetTitle, Body: []byte("hello")}
	got, err := Decode(Encode(f))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != f.Type || !bytes.Equal(got.Body, f.Body) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, f)
	}
}

func TestDecodeEmptyIsMalformed(t *testing.T) {
	if _, err := Decode(nil); err != ErrMalformedFrame {
		t.Errorf("Decode(nil) error = %v, want ErrMalformedFrame", err)
	}
}

func TestLoginRequestRoundTrip(t *testing.T) {
	var pk [PublicKeySize]byte
	for i := range pk {
		pk[i] = byte(i)
	}
	var rid [RequestIdSize]byte
	rid[0] = 0x7
	want := LoginRequest{RequestId: rid, Major: 1, Minor: 2, Build: 3, PublicKey: pk}
	f := want.Encode()
	if f.Type != TypeLoginRequest {
		t.Fatalf("Type = %v, want TypeLoginRequest", f.Type)
	}
	got, err := DecodeLoginRequest(f.Body)
	if err != nil {
		t.Fatalf("DecodeLoginRequest: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestAcceptResponseRoundTrip(t *testing.T) {
	var pk [PublicKeySize]byte
	pk[0] = 0xAB
	var rid [RequestIdSize]byte
	rid[1] = 0x9
	want := AcceptResponse{RequestId: rid, EntityId: 99, PublicKey: pk}
	got, err := DecodeAcceptResponse(want.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeAcceptResponse: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDenyResponseRoundTrip(t *testing.T) {
	var rid [RequestIdSize]byte
	rid[2] = 0x5
	want := DenyResponse{RequestId: rid, Reason: "version mismatch"}
	got, err := DecodeDenyResponse(want.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeDenyResponse: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestInfoRequestResponseRoundTrip(t *testing.T) {
	var rid [RequestIdSize]byte
	rid[0] = 0x42
	req := InfoRequest{RequestId: rid}
	gotReq, err := DecodeInfoRequest(req.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeInfoRequest: %v", err)
	}
	if gotReq != req {
		t.Errorf("got %+v, want %+v", gotReq, req)
	}

	resp := InfoResponse{
		RequestId:       rid,
		Port:            9980,
		MaxClients:      32,
		ConnectedCount:  5,
		Motd:            "welcome",
		PositioningType: "spatial",
		Language:        "en",
	}
	gotResp, err := DecodeInfoResponse(resp.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeInfoResponse: %v", err)
	}
	if gotResp != resp {
		t.Errorf("got %+v, want %+v", gotResp, resp)
	}
}

func TestLogoutRequestRoundTrip(t *testing.T) {
	want := LogoutRequest{EntityId: 12}
	got, err := DecodeLogoutRequest(want.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeLogoutRequest: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSetMuteRoundTrip(t *testing.T) {
	want := SetMute{EntityId: 42, Muted: true}
	got, err := DecodeSetMute(want.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeSetMute: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSetDeafenRoundTrip(t *testing.T) {
	want := SetDeafen{EntityId: 7, Deafened: false}
	got, err := DecodeSetDeafen(want.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeSetDeafen: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSetNameRoundTrip(t *testing.T) {
	want := SetName{EntityId: 5, Name: "Voicey"}
	got, err := DecodeSetName(want.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeSetName: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSetEntityVisibilityRoundTrip(t *testing.T) {
	want := SetEntityVisibility{EntityId: 1, TargetId: 2, Visible: true}
	got, err := DecodeSetEntityVisibility(want.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeSetEntityVisibility: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestAudioRoundTrip(t *testing.T) {
	want := Audio{EntityId: 3, Payload: []byte{1, 2, 3, 4}}
	f, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeAudio(f.Body)
	if err != nil {
		t.Fatalf("DecodeAudio: %v", err)
	}
	if got.EntityId != want.EntityId || !bytes.Equal(got.Payload, want.Payload) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestAudioRejectsOversizedPayload(t *testing.T) {
	a := Audio{EntityId: 1, Payload: make([]byte, MaxEncodedBytes+1)}
	if _, err := a.Encode(); err != ErrOversizedPayload {
		t.Errorf("Encode error = %v, want ErrOversizedPayload", err)
	}
}

func TestAdvancedAudioRoundTripMinimal(t *testing.T) {
	want := AdvancedAudio{
		EntityId:  10,
		Timestamp: 1000,
		Loudness:  0.25,
		Payload:   []byte{9, 8, 7},
	}
	f, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeAdvancedAudio(f.Body)
	if err != nil {
		t.Fatalf("DecodeAdvancedAudio: %v", err)
	}
	if got.EntityId != want.EntityId || got.Timestamp != want.Timestamp ||
		got.Loudness != want.Loudness || !bytes.Equal(got.Payload, want.Payload) ||
		got.Position != nil || got.Rotation != nil {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestAdvancedAudioRoundTripWithPositionAndRotation(t *testing.T) {
	pos := [3]float32{1.5, -2.5, 3.0}
	rot := [2]float32{90.0, -45.0}
	want := AdvancedAudio{
		EntityId:  11,
		Timestamp: 2000,
		Loudness:  0.75,
		Position:  &pos,
		Rotation:  &rot,
		Payload:   []byte{1, 2, 3},
	}
	f, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if f.Body[10]&FlagHasPosition == 0 || f.Body[10]&FlagHasRotation == 0 {
		t.Fatalf("expected both flag bits set, got flags byte %#x", f.Body[10])
	}
	got, err := DecodeAdvancedAudio(f.Body)
	if err != nil {
		t.Fatalf("DecodeAdvancedAudio: %v", err)
	}
	if got.Position == nil || got.Rotation == nil {
		t.Fatal("expected position and rotation to be set")
	}
	if *got.Position != pos || *got.Rotation != rot {
		t.Errorf("got pos=%v rot=%v, want pos=%v rot=%v", *got.Position, *got.Rotation, pos, rot)
	}
}

func TestEncryptedEnvelopeRoundTrip(t *testing.T) {
	want := EncryptedEnvelope{Ciphertext: []byte{1, 2, 3, 4, 5}}
	want.IV[0] = 0x11
	want.Tag[0] = 0x22
	got, err := DecodeEncryptedEnvelope(want.Encode().Body)
	if err != nil {
		t.Fatalf("DecodeEncryptedEnvelope: %v", err)
	}
	if got.IV != want.IV || got.Tag != want.Tag || !bytes.Equal(got.Ciphertext, want.Ciphertext) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestEntityEventsRoundTrip(t *testing.T) {
	ec := EntityCreated{EntityId: 1}
	if got, err := DecodeEntityCreated(ec.Encode().Body); err != nil || got != ec {
		t.Errorf("EntityCreated round trip failed: got %+v, err %v", got, err)
	}

	ed := EntityDestroyed{EntityId: 2}
	if got, err := DecodeEntityDestroyed(ed.Encode().Body); err != nil || got != ed {
		t.Errorf("EntityDestroyed round trip failed: got %+v, err %v", got, err)
	}

	ep := EntityPosition{EntityId: 3, Position: [3]float32{1, 2, 3}}
	if got, err := DecodeEntityPosition(ep.Encode().Body); err != nil || got != ep {
		t.Errorf("EntityPosition round trip failed: got %+v, err %v", got, err)
	}

	er := EntityRotation{EntityId: 4, Rotation: [2]float32{45, 90}}
	if got, err := DecodeEntityRotation(er.Encode().Body); err != nil || got != er {
		t.Errorf("EntityRotation round trip failed: got %+v, err %v", got, err)
	}
}

func TestUnknownTypeStringsAsUnknown(t *testing.T) {
	if s := Type(255).String(); s != "Unknown" {
		t.Errorf("Type(255).String() = %q, want Unknown", s)
	}
}

func TestDecodeBytesPrefixedRejectsTruncated(t *testing.T) {
	if _, _, err := decodeBytesPrefixed([]byte{0, 0, 0, 10, 1, 2}); err != ErrMalformedFrame {
		t.Errorf("error = %v, want ErrMalformedFrame", err)
	}
}

func TestDecodeStringRejectsOverLength(t *testing.T) {
	body := make([]byte, 2)
	putUint16(body, MaxStringLength+1)
	if _, _, err := decodeString(body); err != ErrMalformedFrame {
		t.Errorf("error = %v, want ErrMalformedFrame", err)
	}
}
