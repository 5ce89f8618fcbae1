package wire

import (
	"encoding/binary"
)

// Flag bits for AdvancedAudio.Flags.
const (
	FlagHasPosition uint8 = 1 << 0
	FlagHasRotation uint8 = 1 << 1
)

// PublicKeySize is the raw (uncompressed, prefix-free) P-256 point
// encoding length: 32 bytes X followed by 32 bytes Y.
const PublicKeySize = 64

// encodeString writes a length-prefixed (uint16) UTF-8 string. It does not
// check MaxStringLength; decodeString rejects strings longer than that.
func encodeString(dst []byte, s string) []byte {
	dst = append(dst, 0, 0)
	binary.BigEndian.PutUint16(dst[len(dst)-2:], uint16(len(s)))
	return append(dst, s...)
}

func decodeString(src []byte) (string, []byte, error) {
	if len(src) < 2 {
		return "", nil, ErrMalformedFrame
	}
	n := binary.BigEndian.Uint16(src[:2])
	src = src[2:]
	if int(n) > MaxStringLength || len(src) < int(n) {
		return "", nil, ErrMalformedFrame
	}
	return string(src[:n]), src[n:], nil
}

func encodeBytesPrefixed(dst []byte, b []byte) []byte {
	dst = append(dst, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(dst[len(dst)-4:], uint32(len(b)))
	return append(dst, b...)
}

func decodeBytesPrefixed(src []byte) ([]byte, []byte, error) {
	if len(src) < 4 {
		return nil, nil, ErrMalformedFrame
	}
	n := binary.BigEndian.Uint32(src[:4])
	src = src[4:]
	if n > MaxEncodedBytes || uint32(len(src)) < n {
		return nil, nil, ErrMalformedFrame
	}
	return src[:n], src[n:], nil
}

// RequestIdSize is the length of the 128-bit request correlation id
// carried by every request frame and echoed on its response.
const RequestIdSize = 16

// LoginRequest carries the client's version, ephemeral ECDH public key,
// and a correlation id echoed on the AcceptResponse/DenyResponse.
type LoginRequest struct {
	RequestId           [RequestIdSize]byte
	Major, Minor, Build uint16
	PublicKey           [PublicKeySize]byte
}

func (r LoginRequest) Encode() Frame {
	b := make([]byte, 0, RequestIdSize+6+PublicKeySize)
	b = append(b, r.RequestId[:]...)
	tmp := make([]byte, 2)
	putUint16(tmp, r.Major)
	b = append(b, tmp...)
	putUint16(tmp, r.Minor)
	b = append(b, tmp...)
	putUint16(tmp, r.Build)
	b = append(b, tmp...)
	b = append(b, r.PublicKey[:]...)
	return Frame{Type: TypeLoginRequest, Body: b}
}

func DecodeLoginRequest(body []byte) (LoginRequest, error) {
	if len(body) != RequestIdSize+6+PublicKeySize {
		return LoginRequest{}, ErrMalformedFrame
	}
	var r LoginRequest
	copy(r.RequestId[:], body[0:RequestIdSize])
	off := RequestIdSize
	r.Major = binary.BigEndian.Uint16(body[off : off+2])
	r.Minor = binary.BigEndian.Uint16(body[off+2 : off+4])
	r.Build = binary.BigEndian.Uint16(body[off+4 : off+6])
	copy(r.PublicKey[:], body[off+6:off+6+PublicKeySize])
	return r, nil
}

// AcceptResponse carries the server's ephemeral ECDH public key and the
// entity id the client has been assigned for the rest of the session,
// echoing the LoginRequest's correlation id.
type AcceptResponse struct {
	RequestId [RequestIdSize]byte
	EntityId  int32
	PublicKey [PublicKeySize]byte
}

func (r AcceptResponse) Encode() Frame {
	b := make([]byte, 0, RequestIdSize+4+PublicKeySize)
	b = append(b, r.RequestId[:]...)
	tmp4 := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp4, uint32(r.EntityId))
	b = append(b, tmp4...)
	b = append(b, r.PublicKey[:]...)
	return Frame{Type: TypeAcceptResponse, Body: b}
}

func DecodeAcceptResponse(body []byte) (AcceptResponse, error) {
	if len(body) != RequestIdSize+4+PublicKeySize {
		return AcceptResponse{}, ErrMalformedFrame
	}
	var r AcceptResponse
	copy(r.RequestId[:], body[0:RequestIdSize])
	off := RequestIdSize
	r.EntityId = int32(binary.BigEndian.Uint32(body[off : off+4]))
	copy(r.PublicKey[:], body[off+4:])
	return r, nil
}

// DenyResponse carries a machine-readable rejection reason, echoing the
// LoginRequest's correlation id.
type DenyResponse struct {
	RequestId [RequestIdSize]byte
	Reason    string
}

func (r DenyResponse) Encode() Frame {
	b := append([]byte{}, r.RequestId[:]...)
	b = encodeString(b, r.Reason)
	return Frame{Type: TypeDenyResponse, Body: b}
}

func DecodeDenyResponse(body []byte) (DenyResponse, error) {
	if len(body) < RequestIdSize {
		return DenyResponse{}, ErrMalformedFrame
	}
	var r DenyResponse
	copy(r.RequestId[:], body[0:RequestIdSize])
	reason, _, err := decodeString(body[RequestIdSize:])
	if err != nil {
		return DenyResponse{}, err
	}
	r.Reason = reason
	return r, nil
}

// InfoRequest queries the relay's current properties without requiring an
// established session; used for server-browser-style discovery.
type InfoRequest struct {
	RequestId [RequestIdSize]byte
}

func (r InfoRequest) Encode() Frame {
	return Frame{Type: TypeInfoRequest, Body: append([]byte{}, r.RequestId[:]...)}
}

func DecodeInfoRequest(body []byte) (InfoRequest, error) {
	if len(body) != RequestIdSize {
		return InfoRequest{}, ErrMalformedFrame
	}
	var r InfoRequest
	copy(r.RequestId[:], body)
	return r, nil
}

// InfoResponse answers an InfoRequest with the relay's advertised
// properties.
type InfoResponse struct {
	RequestId       [RequestIdSize]byte
	Port            uint16
	MaxClients      uint16
	ConnectedCount  uint16
	Motd            string
	PositioningType string
	Language        string
}

func (r InfoResponse) Encode() Frame {
	b := make([]byte, 0, RequestIdSize+6)
	b = append(b, r.RequestId[:]...)
	tmp := make([]byte, 2)
	putUint16(tmp, r.Port)
	b = append(b, tmp...)
	putUint16(tmp, r.MaxClients)
	b = append(b, tmp...)
	putUint16(tmp, r.ConnectedCount)
	b = append(b, tmp...)
	b = encodeString(b, r.Motd)
	b = encodeString(b, r.PositioningType)
	b = encodeString(b, r.Language)
	return Frame{Type: TypeInfoResponse, Body: b}
}

func DecodeInfoResponse(body []byte) (InfoResponse, error) {
	if len(body) < RequestIdSize+6 {
		return InfoResponse{}, ErrMalformedFrame
	}
	var r InfoResponse
	copy(r.RequestId[:], body[0:RequestIdSize])
	off := RequestIdSize
	r.Port = binary.BigEndian.Uint16(body[off : off+2])
	r.MaxClients = binary.BigEndian.Uint16(body[off+2 : off+4])
	r.ConnectedCount = binary.BigEndian.Uint16(body[off+4 : off+6])
	rest := body[off+6:]

	motd, rest, err := decodeString(rest)
	if err != nil {
		return InfoResponse{}, err
	}
	posType, rest, err := decodeString(rest)
	if err != nil {
		return InfoResponse{}, err
	}
	lang, _, err := decodeString(rest)
	if err != nil {
		return InfoResponse{}, err
	}
	r.Motd, r.PositioningType, r.Language = motd, posType, lang
	return r, nil
}

// LogoutRequest tells the server an entity is leaving cleanly.
type LogoutRequest struct {
	EntityId int32
}

func (r LogoutRequest) Encode() Frame {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(r.EntityId))
	return Frame{Type: TypeLogoutRequest, Body: b}
}

func DecodeLogoutRequest(body []byte) (LogoutRequest, error) {
	if len(body) != 4 {
		return LogoutRequest{}, ErrMalformedFrame
	}
	return LogoutRequest{EntityId: int32(binary.BigEndian.Uint32(body))}, nil
}

// SetMute and SetDeafen share a shape: an entity id plus a boolean.
type SetMute struct {
	EntityId int32
	Muted    bool
}

func (r SetMute) Encode() Frame {
	b := make([]byte, 5)
	binary.BigEndian.PutUint32(b, uint32(r.EntityId))
	if r.Muted {
		b[4] = 1
	}
	return Frame{Type: TypeSetMute, Body: b}
}

func DecodeSetMute(body []byte) (SetMute, error) {
	if len(body) != 5 {
		return SetMute{}, ErrMalformedFrame
	}
	return SetMute{
		EntityId: int32(binary.BigEndian.Uint32(body[0:4])),
		Muted:    body[4] != 0,
	}, nil
}

type SetDeafen struct {
	EntityId int32
	Deafened bool
}

func (r SetDeafen) Encode() Frame {
	b := make([]byte, 5)
	binary.BigEndian.PutUint32(b, uint32(r.EntityId))
	if r.Deafened {
		b[4] = 1
	}
	return Frame{Type: TypeSetDeafen, Body: b}
}

func DecodeSetDeafen(body []byte) (SetDeafen, error) {
	if len(body) != 5 {
		return SetDeafen{}, ErrMalformedFrame
	}
	return SetDeafen{
		EntityId: int32(binary.BigEndian.Uint32(body[0:4])),
		Deafened: body[4] != 0,
	}, nil
}

// SetName renames an entity.
type SetName struct {
	EntityId int32
	Name     string
}

func (r SetName) Encode() Frame {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(r.EntityId))
	b = encodeString(b, r.Name)
	return Frame{Type: TypeSetName, Body: b}
}

func DecodeSetName(body []byte) (SetName, error) {
	if len(body) < 4 {
		return SetName{}, ErrMalformedFrame
	}
	id := int32(binary.BigEndian.Uint32(body[0:4]))
	name, _, err := decodeString(body[4:])
	if err != nil {
		return SetName{}, err
	}
	return SetName{EntityId: id, Name: name}, nil
}

// SetTitle and SetDescription are server-wide string properties.
type SetTitle struct{ Title string }

func (r SetTitle) Encode() Frame {
	return Frame{Type: TypeSetTitle, Body: encodeString(nil, r.Title)}
}

func DecodeSetTitle(body []byte) (SetTitle, error) {
	s, _, err := decodeString(body)
	return SetTitle{Title: s}, err
}

type SetDescription struct{ Description string }

func (r SetDescription) Encode() Frame {
	return Frame{Type: TypeSetDescription, Body: encodeString(nil, r.Description)}
}

func DecodeSetDescription(body []byte) (SetDescription, error) {
	s, _, err := decodeString(body)
	return SetDescription{Description: s}, err
}

// SetEntityVisibility changes whether Target is visible to Entity.
type SetEntityVisibility struct {
	EntityId int32
	TargetId int32
	Visible  bool
}

func (r SetEntityVisibility) Encode() Frame {
	b := make([]byte, 9)
	binary.BigEndian.PutUint32(b[0:4], uint32(r.EntityId))
	binary.BigEndian.PutUint32(b[4:8], uint32(r.TargetId))
	if r.Visible {
		b[8] = 1
	}
	return Frame{Type: TypeSetEntityVisibility, Body: b}
}

func DecodeSetEntityVisibility(body []byte) (SetEntityVisibility, error) {
	if len(body) != 9 {
		return SetEntityVisibility{}, ErrMalformedFrame
	}
	return SetEntityVisibility{
		EntityId: int32(binary.BigEndian.Uint32(body[0:4])),
		TargetId: int32(binary.BigEndian.Uint32(body[4:8])),
		Visible:  body[8] != 0,
	}, nil
}

// Audio is the plain (non-spatial) voice frame: entity id plus an encoded
// payload. The client accepts it on receive; the relay forwards
// AdvancedAudio, not Audio.
type Audio struct {
	EntityId int32
	Payload  []byte
}

func (r Audio) Encode() (Frame, error) {
	if len(r.Payload) > MaxEncodedBytes {
		return Frame{}, ErrOversizedPayload
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(r.EntityId))
	b = encodeBytesPrefixed(b, r.Payload)
	return Frame{Type: TypeAudio, Body: b}, nil
}

func DecodeAudio(body []byte) (Audio, error) {
	if len(body) < 4 {
		return Audio{}, ErrMalformedFrame
	}
	id := int32(binary.BigEndian.Uint32(body[0:4]))
	payload, _, err := decodeBytesPrefixed(body[4:])
	if err != nil {
		return Audio{}, err
	}
	return Audio{EntityId: id, Payload: payload}, nil
}

// AdvancedAudio is the voice frame sent client->server and relayed
// server->peer, carrying sequencing, loudness, and optional spatial metadata.
type AdvancedAudio struct {
	EntityId  int32
	Timestamp uint16
	Loudness  float32
	Flags     uint8
	Position  *[3]float32
	Rotation  *[2]float32
	Payload   []byte
}

func (r AdvancedAudio) Encode() (Frame, error) {
	if len(r.Payload) > MaxEncodedBytes {
		return Frame{}, ErrOversizedPayload
	}
	flags := r.Flags
	if r.Position != nil {
		flags |= FlagHasPosition
	}
	if r.Rotation != nil {
		flags |= FlagHasRotation
	}

	size := 4 + 2 + 4 + 1
	if flags&FlagHasPosition != 0 {
		size += 12
	}
	if flags&FlagHasRotation != 0 {
		size += 8
	}
	b := make([]byte, 0, size+4+len(r.Payload))
	tmp4 := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp4, uint32(r.EntityId))
	b = append(b, tmp4...)
	tmp2 := make([]byte, 2)
	putUint16(tmp2, r.Timestamp)
	b = append(b, tmp2...)
	f4 := make([]byte, 4)
	putFloat32(f4, r.Loudness)
	b = append(b, f4...)
	b = append(b, flags)
	if r.Position != nil {
		for _, v := range r.Position {
			putFloat32(f4, v)
			b = append(b, f4...)
		}
	}
	if r.Rotation != nil {
		for _, v := range r.Rotation {
			putFloat32(f4, v)
			b = append(b, f4...)
		}
	}
	b = encodeBytesPrefixed(b, r.Payload)
	return Frame{Type: TypeAdvancedAudio, Body: b}, nil
}

func DecodeAdvancedAudio(body []byte) (AdvancedAudio, error) {
	if len(body) < 4+2+4+1 {
		return AdvancedAudio{}, ErrMalformedFrame
	}
	var r AdvancedAudio
	r.EntityId = int32(binary.BigEndian.Uint32(body[0:4]))
	r.Timestamp = binary.BigEndian.Uint16(body[4:6])
	r.Loudness = getFloat32(body[6:10])
	r.Flags = body[10]
	off := 11

	if r.Flags&FlagHasPosition != 0 {
		if len(body) < off+12 {
			return AdvancedAudio{}, ErrMalformedFrame
		}
		var pos [3]float32
		for i := 0; i < 3; i++ {
			pos[i] = getFloat32(body[off+i*4 : off+i*4+4])
		}
		r.Position = &pos
		off += 12
	}
	if r.Flags&FlagHasRotation != 0 {
		if len(body) < off+8 {
			return AdvancedAudio{}, ErrMalformedFrame
		}
		var rot [2]float32
		for i := 0; i < 2; i++ {
			rot[i] = getFloat32(body[off+i*4 : off+i*4+4])
		}
		r.Rotation = &rot
		off += 8
	}

	payload, _, err := decodeBytesPrefixed(body[off:])
	if err != nil {
		return AdvancedAudio{}, err
	}
	r.Payload = payload
	return r, nil
}

// EncryptedEnvelope wraps an AEAD-sealed inner frame.
type EncryptedEnvelope struct {
	IV         [12]byte
	Tag        [16]byte
	Ciphertext []byte
}

func (r EncryptedEnvelope) Encode() Frame {
	b := make([]byte, 0, 12+16+len(r.Ciphertext))
	b = append(b, r.IV[:]...)
	b = append(b, r.Tag[:]...)
	b = append(b, r.Ciphertext...)
	return Frame{Type: TypeEncryptedEnvelope, Body: b}
}

func DecodeEncryptedEnvelope(body []byte) (EncryptedEnvelope, error) {
	if len(body) < 12+16 {
		return EncryptedEnvelope{}, ErrMalformedFrame
	}
	var r EncryptedEnvelope
	copy(r.IV[:], body[0:12])
	copy(r.Tag[:], body[12:28])
	r.Ciphertext = body[28:]
	return r, nil
}

// Entity lifecycle/state events.

type EntityCreated struct{ EntityId int32 }

func (r EntityCreated) Encode() Frame {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(r.EntityId))
	return Frame{Type: TypeEntityCreated, Body: b}
}

func DecodeEntityCreated(body []byte) (EntityCreated, error) {
	if len(body) != 4 {
		return EntityCreated{}, ErrMalformedFrame
	}
	return EntityCreated{EntityId: int32(binary.BigEndian.Uint32(body))}, nil
}

type EntityDestroyed struct{ EntityId int32 }

func (r EntityDestroyed) Encode() Frame {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(r.EntityId))
	return Frame{Type: TypeEntityDestroyed, Body: b}
}

func DecodeEntityDestroyed(body []byte) (EntityDestroyed, error) {
	if len(body) != 4 {
		return EntityDestroyed{}, ErrMalformedFrame
	}
	return EntityDestroyed{EntityId: int32(binary.BigEndian.Uint32(body))}, nil
}

type EntityPosition struct {
	EntityId int32
	Position [3]float32
}

func (r EntityPosition) Encode() Frame {
	b := make([]byte, 4+12)
	binary.BigEndian.PutUint32(b[0:4], uint32(r.EntityId))
	for i, v := range r.Position {
		putFloat32(b[4+i*4:8+i*4], v)
	}
	return Frame{Type: TypeEntityPosition, Body: b}
}

func DecodeEntityPosition(body []byte) (EntityPosition, error) {
	if len(body) != 16 {
		return EntityPosition{}, ErrMalformedFrame
	}
	var r EntityPosition
	r.EntityId = int32(binary.BigEndian.Uint32(body[0:4]))
	for i := 0; i < 3; i++ {
		r.Position[i] = getFloat32(body[4+i*4 : 8+i*4])
	}
	return r, nil
}

type EntityRotation struct {
	EntityId int32
	Rotation [2]float32
}

func (r EntityRotation) Encode() Frame {
	b := make([]byte, 4+8)
	binary.BigEndian.PutUint32(b[0:4], uint32(r.EntityId))
	for i, v := range r.Rotation {
		putFloat32(b[4+i*4:8+i*4], v)
	}
	return Frame{Type: TypeEntityRotation, Body: b}
}

func DecodeEntityRotation(body []byte) (EntityRotation, error) {
	if len(body) != 12 {
		return EntityRotation{}, ErrMalformedFrame
	}
	var r EntityRotation
	r.EntityId = int32(binary.BigEndian.Uint32(body[0:4]))
	for i := 0; i < 2; i++ {
		r.Rotation[i] = getFloat32(body[4+i*4 : 8+i*4])
	}
	return r, nil
}
