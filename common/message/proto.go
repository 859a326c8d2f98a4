package message

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func Encode(msg proto.Message) ([]byte, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	return data, nil
}

func Decode(data []byte, msg proto.Message) error {
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("decode %T: %w", msg, err)
	}
	return nil
}

// EncodeMap packs a flat string-keyed map as a protobuf Struct.
func EncodeMap(fields map[string]interface{}) ([]byte, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return Encode(st)
}

// DecodeMap is the inverse of EncodeMap. Numbers come back as float64.
func DecodeMap(data []byte) (map[string]interface{}, error) {
	st := &structpb.Struct{}
	if err := Decode(data, st); err != nil {
		return nil, err
	}
	return st.AsMap(), nil
}
