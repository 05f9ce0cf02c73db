// Package rpc carries the archive control surface over gRPC.
//
// Messages are plain Go structs encoded as JSON, so no generated stubs are
// needed. Service-side rejections travel as gRPC statuses whose archive
// error code is attached as trailer metadata, which lets the client rebuild
// an archive.ServiceError with the archive's original diagnostic text.
package rpc

import (
	"encoding/json"
)

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}
